package channels

import (
	"context"
	"fmt"

	"github.com/tinyland-inc/webclaw/pkg/bus"
	"github.com/tinyland-inc/webclaw/pkg/config"
	"github.com/tinyland-inc/webclaw/pkg/logger"
)

// Manager owns the configured channels: it starts and stops them
// together and routes outbound bus messages to the channel that owns the
// target jid.
type Manager struct {
	channels map[string]Channel
	bus      *bus.MessageBus
}

// NewManager constructs all enabled channels from config.
func NewManager(cfg *config.Config, b *bus.MessageBus, store GroupStore) (*Manager, error) {
	m := &Manager{
		channels: make(map[string]Channel),
		bus:      b,
	}

	if cfg.Channels.Web.Enabled {
		web, err := NewWebChannel(cfg.Channels.Web, b, store)
		if err != nil {
			return nil, fmt.Errorf("creating web channel: %w", err)
		}
		m.channels[web.Name()] = web
	}

	return m, nil
}

// GetChannel returns a channel by name.
func (m *Manager) GetChannel(name string) (Channel, bool) {
	ch, ok := m.channels[name]
	return ch, ok
}

// ChannelFor returns the channel owning the given jid.
func (m *Manager) ChannelFor(jid string) (Channel, bool) {
	for _, ch := range m.channels {
		if ch.OwnsJID(jid) {
			return ch, true
		}
	}
	return nil, false
}

// EnabledChannels lists the names of all constructed channels.
func (m *Manager) EnabledChannels() []string {
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	return names
}

// StartAll starts every channel. A channel that fails to start is
// logged and skipped; the rest keep running.
func (m *Manager) StartAll(ctx context.Context) error {
	for name, ch := range m.channels {
		if err := ch.Start(ctx); err != nil {
			logger.ErrorCF("channels", "Failed to start channel", map[string]any{
				"channel": name,
				"error":   err.Error(),
			})
		}
	}
	return nil
}

// StopAll stops every channel.
func (m *Manager) StopAll(ctx context.Context) error {
	for name, ch := range m.channels {
		if err := ch.Stop(ctx); err != nil {
			logger.WarnCF("channels", "Failed to stop channel", map[string]any{
				"channel": name,
				"error":   err.Error(),
			})
		}
	}
	return nil
}

// DispatchOutbound consumes outbound messages from the bus and hands
// each one to the channel owning its jid. Runs until ctx is cancelled or
// the bus closes.
func (m *Manager) DispatchOutbound(ctx context.Context) {
	for {
		msg, ok := m.bus.ConsumeOutbound(ctx)
		if !ok {
			return
		}

		ch, ok := m.ChannelFor(msg.ChatJID)
		if !ok {
			logger.WarnCF("channels", "No channel owns outbound jid", map[string]any{
				"jid": msg.ChatJID,
			})
			continue
		}
		if err := ch.Send(ctx, msg); err != nil {
			logger.WarnCF("channels", "Outbound send failed", map[string]any{
				"channel": ch.Name(),
				"jid":     msg.ChatJID,
				"error":   err.Error(),
			})
		}
	}
}
