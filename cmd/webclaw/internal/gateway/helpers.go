package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/tinyland-inc/webclaw/cmd/webclaw/internal"
	"github.com/tinyland-inc/webclaw/pkg/bus"
	"github.com/tinyland-inc/webclaw/pkg/channels"
	"github.com/tinyland-inc/webclaw/pkg/groups"
	"github.com/tinyland-inc/webclaw/pkg/health"
	"github.com/tinyland-inc/webclaw/pkg/logger"
	"github.com/tinyland-inc/webclaw/pkg/snapshot"
)

func gatewayCmd(debug, echo bool) error {
	if debug {
		logger.SetLevel(logger.DEBUG)
		fmt.Println("🔍 Debug mode enabled")
	}

	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	msgBus := bus.NewMessageBus()
	registry := groups.NewRegistry(filepath.Join(cfg.WorkspacePath(), "groups.json"))

	manager, err := channels.NewManager(cfg, msgBus, registry)
	if err != nil {
		return fmt.Errorf("error creating channel manager: %w", err)
	}

	enabled := manager.EnabledChannels()
	if len(enabled) > 0 {
		fmt.Printf("✓ Channels enabled: %s\n", strings.Join(enabled, ", "))
	} else {
		fmt.Println("⚠ Warning: No channels enabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := manager.StartAll(ctx); err != nil {
		fmt.Printf("Error starting channels: %v\n", err)
	}

	go manager.DispatchOutbound(ctx)

	// Without an attached agent runtime the gateway still has to drain
	// the inbound side of the bus; --echo turns the drain loop into a
	// reply loop for end-to-end smoke testing.
	go runResponder(ctx, msgBus, manager, echo)

	var snapService *snapshot.Service
	if web, ok := manager.GetChannel("web"); ok {
		if pusher, ok := web.(snapshot.Pusher); ok {
			snapService, err = snapshot.NewService(cfg.Snapshot, cfg.WorkspacePath(), registry, pusher)
			if err != nil {
				return fmt.Errorf("error creating snapshot service: %w", err)
			}
			if err := snapService.Start(ctx); err != nil {
				fmt.Printf("Error starting snapshot service: %v\n", err)
			} else if cfg.Snapshot.Enabled {
				fmt.Println("✓ Snapshot service started")
			}
		}
	}

	healthServer := health.NewServer(cfg.Gateway.Host, cfg.Gateway.Port)
	go func() {
		if err := healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorCF("health", "Health server error", map[string]any{"error": err.Error()})
		}
	}()
	healthServer.SetReady(true)
	fmt.Printf("✓ Gateway started, health at http://%s:%d/health\n", cfg.Gateway.Host, cfg.Gateway.Port)
	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	<-sigChan

	fmt.Println("\nShutting down...")
	if snapService != nil {
		snapService.Stop()
	}
	cancel()
	healthServer.Stop(context.Background())
	manager.StopAll(context.Background())
	msgBus.Close()
	fmt.Println("✓ Gateway stopped")

	return nil
}

// runResponder consumes inbound messages. With echo enabled it mirrors
// each message back through the owning channel, typing indicator
// included; otherwise it only logs, keeping the bus drained until a real
// agent host is attached.
func runResponder(ctx context.Context, msgBus *bus.MessageBus, manager *channels.Manager, echo bool) {
	for {
		msg, ok := msgBus.ConsumeInbound(ctx)
		if !ok {
			return
		}

		if !echo {
			logger.InfoCF("gateway", "Inbound message (no agent attached)", map[string]any{
				"jid":    msg.ChatJID,
				"sender": msg.SenderName,
			})
			continue
		}

		if ch, found := manager.ChannelFor(msg.ChatJID); found {
			ch.SetTyping(ctx, msg.ChatJID, true)
		}

		err := msgBus.PublishOutbound(ctx, bus.OutboundMessage{
			Channel: msg.Channel,
			ChatJID: msg.ChatJID,
			Content: msg.Content,
		})
		if err != nil {
			return
		}

		if ch, found := manager.ChannelFor(msg.ChatJID); found {
			ch.SetTyping(ctx, msg.ChatJID, false)
		}
	}
}
