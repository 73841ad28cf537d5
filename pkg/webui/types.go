package webui

import "time"

// Registration announces a conversation created on the web UI side.
// Folder is a filesystem-safe token chosen by the UI backend; webclaw
// passes it through unmodified.
type Registration struct {
	ConversationID  string `json:"conversationId"`
	Name            string `json:"name"`
	Folder          string `json:"folder"`
	RequiresTrigger bool   `json:"requiresTrigger,omitempty"`
}

// Message is a pending user message as stored by the UI backend.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderName     string    `json:"senderName"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

// PendingBatch is the response of the pending endpoint: everything the
// UI backend has queued since the last acknowledged batch.
type PendingBatch struct {
	Registrations []Registration `json:"registrations"`
	Messages      []Message      `json:"messages"`
}

// AckRequest marks a batch consumed. Items not listed here stay pending
// and are redelivered on the next fetch.
type AckRequest struct {
	MessageIDs      []string `json:"messageIds"`
	ConversationIDs []string `json:"conversationIds"`
}

// Delivery is an agent reply pushed back to the UI.
type Delivery struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

// TypingUpdate toggles the typing indicator for a conversation.
type TypingUpdate struct {
	ConversationID string `json:"conversationId"`
	IsTyping       bool   `json:"isTyping"`
}

// ContainerStatus reports agent execution state for a conversation.
type ContainerStatus struct {
	ConversationID string `json:"conversationId"`
	Status         string `json:"status"`
	Error          string `json:"error,omitempty"`
}

// TreeNode is one entry of a workspace file tree. Type is "file" or
// "directory".
type TreeNode struct {
	Name     string     `json:"name"`
	Type     string     `json:"type"`
	Children []TreeNode `json:"children,omitempty"`
}

// WorkspaceSnapshot pushes a conversation's current workspace tree.
type WorkspaceSnapshot struct {
	ConversationID string     `json:"conversationId"`
	Tree           []TreeNode `json:"tree"`
}
