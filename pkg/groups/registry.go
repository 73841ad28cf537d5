// Package groups holds the host's durable record of tracked conversations.
// Channels never mutate the registry directly; they go through the small
// store interface defined in pkg/channels so other channel implementations
// can share it without data races.
package groups

import (
	"encoding/json"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tinyland-inc/webclaw/pkg/logger"
)

// Group is one registered conversation, keyed by its namespaced jid.
// Folder is a remote-supplied token mapping the conversation to isolated
// working storage; it is stored as-is and sanitized only where consumed.
type Group struct {
	JID             string    `json:"jid"`
	Name            string    `json:"name"`
	Folder          string    `json:"folder"`
	RequiresTrigger bool      `json:"requires_trigger,omitempty"`
	LastActivity    time.Time `json:"last_activity,omitempty"`
}

// Registry is an in-memory jid -> Group map with optional JSON
// persistence. Persistence failures are logged, never fatal: the remote
// side redelivers registrations, so a lost file heals on the next poll.
type Registry struct {
	mu     sync.RWMutex
	path   string
	groups map[string]Group
}

// NewRegistry creates a registry persisted at path. An empty path keeps
// the registry purely in memory.
func NewRegistry(path string) *Registry {
	r := &Registry{
		path:   path,
		groups: make(map[string]Group),
	}
	r.load()
	return r
}

// Snapshot returns a copy of the current jid -> Group view.
func (r *Registry) Snapshot() map[string]Group {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Group, len(r.groups))
	maps.Copy(out, r.groups)
	return out
}

// Get returns the group for jid, if registered.
func (r *Registry) Get(jid string) (Group, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[jid]
	return g, ok
}

// Register adds or replaces a group record.
func (r *Registry) Register(g Group) {
	r.mu.Lock()
	r.groups[g.JID] = g
	r.mu.Unlock()
	r.save()
}

// Touch records the latest activity timestamp for a registered group.
// Unknown jids are ignored.
func (r *Registry) Touch(jid string, ts time.Time) {
	r.mu.Lock()
	g, ok := r.groups[jid]
	if ok && ts.After(g.LastActivity) {
		g.LastActivity = ts
		r.groups[jid] = g
	}
	r.mu.Unlock()
	if ok {
		r.save()
	}
}

// List returns all registered groups in unspecified order.
func (r *Registry) List() []Group {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Group, 0, len(r.groups))
	for _, g := range r.groups {
		out = append(out, g)
	}
	return out
}

func (r *Registry) load() {
	if r.path == "" {
		return
	}
	data, err := os.ReadFile(r.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.WarnCF("groups", "Failed to read registry file", map[string]any{
				"path":  r.path,
				"error": err.Error(),
			})
		}
		return
	}
	var list []Group
	if err := json.Unmarshal(data, &list); err != nil {
		logger.WarnCF("groups", "Failed to parse registry file", map[string]any{
			"path":  r.path,
			"error": err.Error(),
		})
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range list {
		r.groups[g.JID] = g
	}
}

func (r *Registry) save() {
	if r.path == "" {
		return
	}
	list := r.List()
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		logger.WarnCF("groups", "Failed to encode registry", map[string]any{"error": err.Error()})
		return
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		logger.WarnCF("groups", "Failed to create registry dir", map[string]any{"error": err.Error()})
		return
	}
	if err := os.WriteFile(r.path, data, 0o600); err != nil {
		logger.WarnCF("groups", "Failed to write registry file", map[string]any{
			"path":  r.path,
			"error": err.Error(),
		})
	}
}
