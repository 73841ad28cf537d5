package channels

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tinyland-inc/webclaw/pkg/bus"
	"github.com/tinyland-inc/webclaw/pkg/config"
	"github.com/tinyland-inc/webclaw/pkg/groups"
	"github.com/tinyland-inc/webclaw/pkg/logger"
	"github.com/tinyland-inc/webclaw/pkg/webui"
)

// WebJIDPrefix namespaces conversation jids owned by the web channel.
const WebJIDPrefix = "web:"

// fallbackSenderName is used when the UI backend omits a sender name.
const fallbackSenderName = "Web User"

// ErrMissingSecret is returned when the web channel is constructed
// without a shared secret.
var ErrMissingSecret = errors.New("web channel requires a shared secret")

// WebChannel bridges a conversational web UI backend with the agent
// gateway. Inbound flow is pull-based: a poll loop fetches pending
// registrations and messages, reconciles them into the group store and
// the bus, and acknowledges consumed items in one batch. Outbound flow
// is push-based: Send, SetTyping and the status/snapshot extensions
// issue direct HTTP calls whenever the host has something to say.
//
// Delivery is at-least-once: a failed acknowledgement leaves items
// pending on the backend and they are redelivered on the next cycle.
type WebChannel struct {
	*BaseChannel

	client   *webui.Client
	store    GroupStore
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWebChannel builds the channel from config. A missing secret is the
// only construction-time failure; everything else (including an
// unreachable backend) is handled at runtime.
func NewWebChannel(cfg config.WebConfig, b *bus.MessageBus, store GroupStore) (*WebChannel, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSecret
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:3000"
	}
	intervalMS := cfg.PollIntervalMS
	if intervalMS <= 0 {
		intervalMS = 2000
	}

	return &WebChannel{
		BaseChannel: NewBaseChannel("web", b, cfg.AllowFrom),
		client:      webui.NewClient(baseURL, cfg.Secret),
		store:       store,
		interval:    time.Duration(intervalMS) * time.Millisecond,
	}, nil
}

// OwnsJID reports whether jid belongs to the web namespace.
func (c *WebChannel) OwnsJID(jid string) bool {
	return strings.HasPrefix(jid, WebJIDPrefix)
}

// Start probes the backend, marks the channel running and launches the
// poll loop. The probe is best-effort: failure is logged and the channel
// activates anyway, recovering once the backend becomes reachable.
func (c *WebChannel) Start(ctx context.Context) error {
	if c.IsRunning() {
		return nil
	}

	// The probe runs outside the lock so Stop never waits on a slow
	// backend.
	if err := c.client.Health(ctx); err != nil {
		logger.WarnCF("web", "Backend health probe failed, polling anyway", map[string]any{
			"error": err.Error(),
		})
	}

	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return nil
	}
	pollCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	done := make(chan struct{})
	c.done = done
	c.SetRunning(true)
	c.mu.Unlock()

	go c.pollLoop(pollCtx, done)

	logger.InfoCF("web", "Web channel started", map[string]any{
		"interval": c.interval.String(),
	})
	return nil
}

// Stop marks the channel stopped and cancels the pending poll timer.
// An in-flight cycle is not aborted; the loop exits once it settles.
// Stop is idempotent and safe to call before Start.
func (c *WebChannel) Stop(ctx context.Context) error {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.cancel = nil
	c.done = nil
	c.mu.Unlock()

	c.SetRunning(false)
	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	logger.InfoC("web", "Web channel stopped")
	return nil
}

// pollLoop runs cycles strictly sequentially: the timer is re-armed only
// after the previous cycle settles, so a slow backend stretches the
// effective interval instead of stacking concurrent polls.
func (c *WebChannel) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(c.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		c.Poll(ctx)

		if !c.IsRunning() {
			return
		}
		timer.Reset(c.interval)
	}
}

// Poll runs one fetch-reconcile-acknowledge cycle. Registrations are
// fully processed before any message is evaluated, with a fresh read of
// the group store in between, so a message for a conversation registered
// in the same batch is not dropped. Exported so tests can drive cycles
// deterministically.
func (c *WebChannel) Poll(ctx context.Context) {
	batch, err := c.client.Pending(ctx)
	if err != nil {
		logger.WarnCF("web", "Pending fetch failed", map[string]any{"error": err.Error()})
		return
	}

	var ackConvs, ackMsgs []string

	registered := c.store.Snapshot()
	for _, reg := range batch.Registrations {
		jid := WebJIDPrefix + reg.ConversationID
		if _, ok := registered[jid]; !ok {
			c.store.Register(groups.Group{
				JID:             jid,
				Name:            reg.Name,
				Folder:          reg.Folder,
				RequiresTrigger: reg.RequiresTrigger,
			})
			logger.InfoCF("web", "Registered conversation", map[string]any{
				"jid":    jid,
				"folder": reg.Folder,
			})
		}
		// An already-known conversation still needs an ack so the
		// backend stops resending it.
		ackConvs = append(ackConvs, reg.ConversationID)
	}

	// Re-read after registrations: messages in this batch may belong to
	// conversations registered moments ago.
	registered = c.store.Snapshot()
	for _, m := range batch.Messages {
		jid := WebJIDPrefix + m.ConversationID
		if _, ok := registered[jid]; !ok {
			logger.WarnCF("web", "Message for unregistered conversation, leaving pending", map[string]any{
				"jid":        jid,
				"message_id": m.ID,
			})
			continue
		}

		c.store.Touch(jid, m.CreatedAt)
		if !c.HandleMessage(ctx, c.translate(jid, m)) {
			continue
		}
		ackMsgs = append(ackMsgs, m.ID)
	}

	if len(ackConvs) == 0 && len(ackMsgs) == 0 {
		return
	}
	if err := c.client.Ack(ctx, webui.AckRequest{
		MessageIDs:      ackMsgs,
		ConversationIDs: ackConvs,
	}); err != nil {
		// The next cycle's redelivery is the retry mechanism.
		logger.WarnCF("web", "Batch ack failed, items stay pending", map[string]any{
			"error": err.Error(),
		})
	}
}

// translate maps a backend message to the canonical inbound record.
// The sender is synthesized as "<conversationId>@web" so it stays stable
// and non-empty regardless of what the UI reports.
func (c *WebChannel) translate(jid string, m webui.Message) bus.InboundMessage {
	name := m.SenderName
	if name == "" {
		name = fallbackSenderName
	}
	ts := m.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return bus.InboundMessage{
		ID:           m.ID,
		Channel:      c.Name(),
		ChatJID:      jid,
		Sender:       m.ConversationID + "@web",
		SenderName:   name,
		Content:      m.Content,
		Timestamp:    ts,
		IsFromMe:     false,
		IsBotMessage: false,
	}
}

// Send delivers an agent reply. Delivery is best-effort: a failed push
// is logged and swallowed so a backend outage never crashes the agent
// turn; the user simply retries by sending another message.
func (c *WebChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	d := webui.Delivery{
		ID:             uuid.New().String(),
		ConversationID: strings.TrimPrefix(msg.ChatJID, WebJIDPrefix),
		Content:        msg.Content,
		CreatedAt:      time.Now().UTC(),
	}
	if err := c.client.Deliver(ctx, d); err != nil {
		logger.WarnCF("web", "Reply delivery failed", map[string]any{
			"jid":   msg.ChatJID,
			"error": err.Error(),
		})
	}
	return nil
}

// SetTyping pushes a typing indicator with the same best-effort
// semantics as Send.
func (c *WebChannel) SetTyping(ctx context.Context, jid string, typing bool) error {
	err := c.client.Typing(ctx, webui.TypingUpdate{
		ConversationID: strings.TrimPrefix(jid, WebJIDPrefix),
		IsTyping:       typing,
	})
	if err != nil {
		logger.WarnCF("web", "Typing update failed", map[string]any{
			"jid":   jid,
			"error": err.Error(),
		})
	}
	return nil
}

// PushContainerStatus reports agent execution status for a conversation.
// Channel-specific extension, not part of the shared Channel interface.
func (c *WebChannel) PushContainerStatus(ctx context.Context, jid, status, errDetail string) {
	err := c.client.ContainerStatus(ctx, webui.ContainerStatus{
		ConversationID: strings.TrimPrefix(jid, WebJIDPrefix),
		Status:         status,
		Error:          errDetail,
	})
	if err != nil {
		logger.WarnCF("web", "Container status push failed", map[string]any{
			"jid":   jid,
			"error": err.Error(),
		})
	}
}

// PushWorkspaceSnapshot pushes a conversation's workspace file tree.
// Channel-specific extension, not part of the shared Channel interface.
func (c *WebChannel) PushWorkspaceSnapshot(ctx context.Context, jid string, tree []webui.TreeNode) {
	err := c.client.WorkspaceSnapshot(ctx, webui.WorkspaceSnapshot{
		ConversationID: strings.TrimPrefix(jid, WebJIDPrefix),
		Tree:           tree,
	})
	if err != nil {
		logger.WarnCF("web", "Workspace snapshot push failed", map[string]any{
			"jid":   jid,
			"error": err.Error(),
		})
	}
}
