// Package snapshot periodically pushes each registered conversation's
// workspace file tree (and optionally a running status) to the web UI
// backend, giving the UI a live view of what the agent is working on.
package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/tinyland-inc/webclaw/pkg/config"
	"github.com/tinyland-inc/webclaw/pkg/groups"
	"github.com/tinyland-inc/webclaw/pkg/logger"
	"github.com/tinyland-inc/webclaw/pkg/webui"
)

// Pusher is the channel-side contract for pushing snapshots and status.
// The web channel's extension methods satisfy it.
type Pusher interface {
	PushWorkspaceSnapshot(ctx context.Context, jid string, tree []webui.TreeNode)
	PushContainerStatus(ctx context.Context, jid, status, errDetail string)
}

// GroupLister is the read-only registry view the service needs.
type GroupLister interface {
	List() []groups.Group
}

// Service evaluates a cron schedule once per minute and pushes a
// snapshot per registered group when due.
type Service struct {
	cfg       config.SnapshotConfig
	workspace string
	store     GroupLister
	pusher    Pusher
	gron      *gronx.Gronx

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewService validates the schedule and builds the service.
func NewService(cfg config.SnapshotConfig, workspace string, store GroupLister, pusher Pusher) (*Service, error) {
	g := gronx.New()
	if cfg.Enabled && !g.IsValid(cfg.Schedule) {
		return nil, fmt.Errorf("invalid snapshot schedule %q", cfg.Schedule)
	}
	return &Service{
		cfg:       cfg,
		workspace: workspace,
		store:     store,
		pusher:    pusher,
		gron:      g,
	}, nil
}

// Start launches the minute ticker. A disabled service starts as a
// no-op so the gateway wiring stays unconditional.
func (s *Service) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(runCtx, s.done)

	logger.InfoCF("snapshot", "Snapshot service started", map[string]any{
		"schedule": s.cfg.Schedule,
	})
	return nil
}

// Stop cancels the ticker and waits for the loop to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	logger.InfoC("snapshot", "Snapshot service stopped")
}

func (s *Service) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		due, err := s.gron.IsDue(s.cfg.Schedule, time.Now())
		if err != nil {
			logger.WarnCF("snapshot", "Schedule evaluation failed", map[string]any{
				"error": err.Error(),
			})
			continue
		}
		if due {
			s.PushAll(ctx)
		}
	}
}

// PushAll builds and pushes a snapshot for every registered group that
// has a workspace folder. Exported so tests (and one-shot pushes) can
// bypass the schedule.
func (s *Service) PushAll(ctx context.Context) {
	for _, g := range s.store.List() {
		if g.Folder == "" {
			continue
		}

		// The folder token is remote-supplied and passed through the
		// relay opaquely; it is sanitized here, at the point of
		// consumption. Anything absolute or escaping the workspace is
		// rejected.
		if !filepath.IsLocal(g.Folder) {
			logger.WarnCF("snapshot", "Rejecting folder outside workspace", map[string]any{
				"jid":    g.JID,
				"folder": g.Folder,
			})
			continue
		}

		dir := filepath.Join(s.workspace, g.Folder)
		if _, err := os.Stat(dir); err != nil {
			continue
		}

		tree, err := BuildTree(dir)
		if err != nil {
			logger.WarnCF("snapshot", "Failed to build workspace tree", map[string]any{
				"jid":   g.JID,
				"error": err.Error(),
			})
			continue
		}

		s.pusher.PushWorkspaceSnapshot(ctx, g.JID, tree)
		if s.cfg.PushStatus {
			s.pusher.PushContainerStatus(ctx, g.JID, "running", "")
		}
	}
}
