package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tinyland-inc/webclaw/pkg/bus"
	"github.com/tinyland-inc/webclaw/pkg/channels"
	"github.com/tinyland-inc/webclaw/pkg/config"
	"github.com/tinyland-inc/webclaw/pkg/groups"
	"github.com/tinyland-inc/webclaw/pkg/webui"
)

// uiBackend is a stateful fake of the web UI backend: pending items stay
// queued until acknowledged, deliveries are recorded and announced.
type uiBackend struct {
	mu            sync.Mutex
	registrations []webui.Registration
	messages      []webui.Message
	deliveries    []webui.Delivery
	failAcks      int // fail this many ack calls before accepting

	delivered chan webui.Delivery
}

func newUIBackend() *uiBackend {
	return &uiBackend{delivered: make(chan webui.Delivery, 16)}
}

func (b *uiBackend) enqueue(reg *webui.Registration, msg *webui.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if reg != nil {
		b.registrations = append(b.registrations, *reg)
	}
	if msg != nil {
		b.messages = append(b.messages, *msg)
	}
}

func (b *uiBackend) handler(t *testing.T, secret string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+secret {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		b.mu.Lock()
		defer b.mu.Unlock()

		switch r.URL.Path {
		case "/api/health":
			json.NewEncoder(w).Encode(map[string]bool{"ok": true})
		case "/api/internal/pending":
			json.NewEncoder(w).Encode(webui.PendingBatch{
				Registrations: b.registrations,
				Messages:      b.messages,
			})
		case "/api/internal/ack":
			if b.failAcks > 0 {
				b.failAcks--
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			var req webui.AckRequest
			json.NewDecoder(r.Body).Decode(&req)
			b.registrations = dropRegistrations(b.registrations, req.ConversationIDs)
			b.messages = dropMessages(b.messages, req.MessageIDs)
		case "/api/internal/deliver":
			var d webui.Delivery
			json.NewDecoder(r.Body).Decode(&d)
			b.deliveries = append(b.deliveries, d)
			b.delivered <- d
		case "/api/internal/typing":
			// accepted, nothing to record
		default:
			t.Errorf("unexpected request path %q", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func dropRegistrations(regs []webui.Registration, ids []string) []webui.Registration {
	acked := make(map[string]bool, len(ids))
	for _, id := range ids {
		acked[id] = true
	}
	var out []webui.Registration
	for _, r := range regs {
		if !acked[r.ConversationID] {
			out = append(out, r)
		}
	}
	return out
}

func dropMessages(msgs []webui.Message, ids []string) []webui.Message {
	acked := make(map[string]bool, len(ids))
	for _, id := range ids {
		acked[id] = true
	}
	var out []webui.Message
	for _, m := range msgs {
		if !acked[m.ID] {
			out = append(out, m)
		}
	}
	return out
}

// startRelay wires the full gateway stack (bus, registry, manager, echo
// responder) against the fake backend and returns the registry.
func startRelay(t *testing.T, ctx context.Context, backend *uiBackend) *groups.Registry {
	t.Helper()

	srv := httptest.NewServer(backend.handler(t, "e2e-secret"))
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.Workspace = t.TempDir()
	cfg.Channels.Web = config.WebConfig{
		Enabled:        true,
		BaseURL:        srv.URL,
		Secret:         "e2e-secret",
		PollIntervalMS: 10,
	}

	msgBus := bus.NewMessageBus()
	t.Cleanup(msgBus.Close)
	registry := groups.NewRegistry(filepath.Join(cfg.WorkspacePath(), "groups.json"))

	manager, err := channels.NewManager(cfg, msgBus, registry)
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}

	go manager.DispatchOutbound(ctx)
	go func() {
		// Echo responder standing in for the agent runtime.
		for {
			msg, ok := msgBus.ConsumeInbound(ctx)
			if !ok {
				return
			}
			msgBus.PublishOutbound(ctx, bus.OutboundMessage{
				Channel: msg.Channel,
				ChatJID: msg.ChatJID,
				Content: "echo: " + msg.Content,
			})
		}
	}()

	if err := manager.StartAll(ctx); err != nil {
		t.Fatalf("StartAll() error: %v", err)
	}
	t.Cleanup(func() { manager.StopAll(context.Background()) })

	return registry
}

func TestRelayRoundtrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend := newUIBackend()
	backend.enqueue(
		&webui.Registration{ConversationID: "conv-e2e", Name: "Main", Folder: "web-conv-e2e"},
		&webui.Message{ID: "msg-e2e", ConversationID: "conv-e2e", SenderName: "Ada", Content: "ping", CreatedAt: time.Now()},
	)

	registry := startRelay(t, ctx, backend)

	select {
	case d := <-backend.delivered:
		if d.ConversationID != "conv-e2e" {
			t.Errorf("delivery conversationId: got %q", d.ConversationID)
		}
		if d.Content != "echo: ping" {
			t.Errorf("delivery content: got %q", d.Content)
		}
		if d.ID == "" {
			t.Error("delivery id must be generated")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("reply never reached the backend")
	}

	g, ok := registry.Get("web:conv-e2e")
	if !ok {
		t.Fatal("conversation was not registered")
	}
	if g.Folder != "web-conv-e2e" {
		t.Errorf("folder: got %q", g.Folder)
	}

	// The batch was acknowledged, so the queue drains.
	deadline := time.After(2 * time.Second)
	for {
		backend.mu.Lock()
		drained := len(backend.registrations) == 0 && len(backend.messages) == 0
		backend.mu.Unlock()
		if drained {
			break
		}
		select {
		case <-deadline:
			t.Fatal("pending queue never drained after ack")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestRelayRedeliveryAfterFailedAck(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend := newUIBackend()
	backend.failAcks = 1
	backend.enqueue(
		&webui.Registration{ConversationID: "conv-r", Name: "Main", Folder: "web-conv-r"},
		&webui.Message{ID: "msg-r", ConversationID: "conv-r", Content: "retry me", CreatedAt: time.Now()},
	)

	startRelay(t, ctx, backend)

	// The first cycle's ack fails, so the message is redelivered and
	// echoed at least twice: at-least-once, not exactly-once.
	seen := 0
	deadline := time.After(5 * time.Second)
	for seen < 2 {
		select {
		case d := <-backend.delivered:
			if d.Content != "echo: retry me" {
				t.Errorf("delivery content: got %q", d.Content)
			}
			seen++
		case <-deadline:
			t.Fatalf("expected at least 2 deliveries after a failed ack, got %d", seen)
		}
	}
}
