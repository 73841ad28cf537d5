package webui

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_BearerAndContentType(t *testing.T) {
	var gotAuth, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "s3cret")
	if err := c.Typing(context.Background(), TypingUpdate{ConversationID: "c1", IsTyping: true}); err != nil {
		t.Fatalf("Typing() error: %v", err)
	}

	if gotAuth != "Bearer s3cret" {
		t.Errorf("Authorization: got %q", gotAuth)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type: got %q", gotContentType)
	}
}

func TestClient_Pending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/internal/pending" {
			t.Errorf("path: got %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(PendingBatch{
			Registrations: []Registration{{ConversationID: "c1", Name: "Main", Folder: "web-c1"}},
			Messages:      []Message{{ID: "m1", ConversationID: "c1", Content: "hi", CreatedAt: time.Now()}},
		})
	}))
	defer srv.Close()

	batch, err := NewClient(srv.URL, "s").Pending(context.Background())
	if err != nil {
		t.Fatalf("Pending() error: %v", err)
	}
	if len(batch.Registrations) != 1 || batch.Registrations[0].Folder != "web-c1" {
		t.Errorf("registrations: got %+v", batch.Registrations)
	}
	if len(batch.Messages) != 1 || batch.Messages[0].ID != "m1" {
		t.Errorf("messages: got %+v", batch.Messages)
	}
}

func TestClient_AckNormalizesNilSlices(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	if err := NewClient(srv.URL, "s").Ack(context.Background(), AckRequest{}); err != nil {
		t.Fatalf("Ack() error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("decoding ack body: %v", err)
	}
	if decoded["messageIds"] == nil {
		t.Error("messageIds must encode as [], not null")
	}
	if decoded["conversationIds"] == nil {
		t.Error("conversationIds must encode as [], not null")
	}
}

func TestClient_NonSuccessStatusIsError(t *testing.T) {
	for _, code := range []int{http.StatusUnauthorized, http.StatusInternalServerError} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(code)
		}))

		c := NewClient(srv.URL, "s")
		if err := c.Health(context.Background()); err == nil {
			t.Errorf("status %d: expected error from Health()", code)
		}
		if _, err := c.Pending(context.Background()); err == nil {
			t.Errorf("status %d: expected error from Pending()", code)
		}
		if err := c.Deliver(context.Background(), Delivery{}); err == nil {
			t.Errorf("status %d: expected error from Deliver()", code)
		}
		srv.Close()
	}
}

func TestClient_TransportErrorIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // deliberately closed

	if _, err := NewClient(srv.URL, "s").Pending(context.Background()); err == nil {
		t.Error("expected transport error against a closed server")
	}
}

func TestClient_TrimsTrailingSlash(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "s")
	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("Health() error: %v", err)
	}
	if gotPath != "/api/health" {
		t.Errorf("path: got %q, want /api/health", gotPath)
	}
}
