package channels

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tinyland-inc/webclaw/pkg/bus"
	"github.com/tinyland-inc/webclaw/pkg/groups"
	"github.com/tinyland-inc/webclaw/pkg/logger"
)

// Channel is the capability set the gateway uses polymorphically across
// channel implementations. Start never fails the caller on remote
// unreachability; only local misconfiguration is surfaced at
// construction time.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsRunning() bool
	OwnsJID(jid string) bool
	Send(ctx context.Context, msg bus.OutboundMessage) error
	SetTyping(ctx context.Context, jid string, typing bool) error
}

// GroupStore is the host-side contract a channel needs to reconcile
// conversations: a read-only view of registered groups plus a
// registration request and an activity-timestamp update. The store owns
// the underlying map; channels never mutate it directly.
type GroupStore interface {
	Snapshot() map[string]groups.Group
	Register(g groups.Group)
	Touch(jid string, ts time.Time)
}

// BaseChannel carries the state and behavior shared by all channel
// implementations: running flag, sender allow-list and inbound
// publishing.
type BaseChannel struct {
	bus       *bus.MessageBus
	name      string
	allowList []string
	running   atomic.Bool
}

func NewBaseChannel(name string, b *bus.MessageBus, allowList []string) *BaseChannel {
	return &BaseChannel{
		bus:       b,
		name:      name,
		allowList: allowList,
	}
}

func (c *BaseChannel) Name() string {
	return c.name
}

func (c *BaseChannel) IsRunning() bool {
	return c.running.Load()
}

func (c *BaseChannel) SetRunning(running bool) {
	c.running.Store(running)
}

// IsAllowed reports whether a sender passes the channel allow-list.
// An empty list allows everyone. Entries match either the sender address
// or the display name, with a leading "@" stripped.
func (c *BaseChannel) IsAllowed(sender, senderName string) bool {
	if len(c.allowList) == 0 {
		return true
	}
	for _, allowed := range c.allowList {
		trimmed := strings.TrimPrefix(allowed, "@")
		if sender == allowed || sender == trimmed ||
			(senderName != "" && (senderName == allowed || senderName == trimmed)) {
			return true
		}
	}
	return false
}

// HandleMessage filters an inbound message through the allow-list and
// publishes it to the bus. It reports whether the message reached the
// bus; a filtered message counts as handled so callers can still
// acknowledge it upstream.
func (c *BaseChannel) HandleMessage(ctx context.Context, msg bus.InboundMessage) bool {
	if !c.IsAllowed(msg.Sender, msg.SenderName) {
		logger.InfoCF(c.name, "Sender not in allow-list, dropping message", map[string]any{
			"sender": msg.Sender,
		})
		return true
	}

	if err := c.bus.PublishInbound(ctx, msg); err != nil {
		logger.WarnCF(c.name, "Failed to publish inbound message", map[string]any{
			"message_id": msg.ID,
			"error":      err.Error(),
		})
		return false
	}
	return true
}
