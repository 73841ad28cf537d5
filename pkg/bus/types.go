package bus

import "time"

// InboundMessage is the canonical record handed to the host for every
// message a channel receives. ChatJID is namespaced by channel, e.g.
// "web:<conversationId>".
type InboundMessage struct {
	ID           string    `json:"id"`
	Channel      string    `json:"channel"`
	ChatJID      string    `json:"chat_jid"`
	Sender       string    `json:"sender"`
	SenderName   string    `json:"sender_name"`
	Content      string    `json:"content"`
	Timestamp    time.Time `json:"timestamp"`
	IsFromMe     bool      `json:"is_from_me"`
	IsBotMessage bool      `json:"is_bot_message"`
}

// OutboundMessage is a reply the host wants delivered through a channel.
// ChatJID carries the channel namespace so the manager can route it back
// to the owning channel.
type OutboundMessage struct {
	Channel string `json:"channel"`
	ChatJID string `json:"chat_jid"`
	Content string `json:"content"`
}
