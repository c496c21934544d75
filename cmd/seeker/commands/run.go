package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dkovac/seeker/internal/agent"
	"github.com/dkovac/seeker/internal/approval"
	"github.com/dkovac/seeker/internal/audit"
	"github.com/dkovac/seeker/internal/bus"
	"github.com/dkovac/seeker/internal/channel"
	"github.com/dkovac/seeker/internal/channel/telegram"
	"github.com/dkovac/seeker/internal/config"
	"github.com/dkovac/seeker/internal/gateway"
	"github.com/dkovac/seeker/internal/input"
	"github.com/dkovac/seeker/internal/mailbox"
	"github.com/dkovac/seeker/internal/mcp"
	"github.com/dkovac/seeker/internal/notify"
	"github.com/dkovac/seeker/internal/provider"
	"github.com/dkovac/seeker/internal/reaper"
	"github.com/dkovac/seeker/internal/tools"
	"github.com/spf13/cobra"
)

func NewRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start Seeker server",
		RunE:  runServer,
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	workspacePath, err := cfg.WorkspacePathChecked()
	if err != nil {
		return fmt.Errorf("invalid workspace: %w", err)
	}

	msgBus := bus.NewMessageBus(100)

	model, err := provider.NewChatModel(ctx, cfg)
	if err != nil {
		slog.Warn("no model configured", "error", err)
	}

	notifier := notify.New()
	inputs := input.NewRegistry(notifier,
		input.WithPollInterval(time.Duration(cfg.Pending.PollIntervalMs)*time.Millisecond),
		input.WithRetention(time.Duration(cfg.Pending.InputRetention)*time.Second))
	approvals := approval.NewQueue(notifier,
		approval.WithRetention(time.Duration(cfg.Pending.ToolRetention)*time.Second))
	results := mailbox.New(
		mailbox.WithRetention(time.Duration(cfg.Pending.ResultRetention) * time.Second))

	loop, err := agent.NewLoop(cfg, msgBus, model, agent.Stores{
		Inputs:    inputs,
		Approvals: approvals,
		Results:   results,
	})
	if err != nil {
		return fmt.Errorf("invalid workspace: %w", err)
	}
	if err := loop.RegisterDefaultTools(cfg); err != nil {
		return err
	}

	if len(cfg.MCP.Servers) > 0 {
		mcpMgr := mcp.NewManager(cfg.MCP.Servers, mcp.DefaultConnectors())
		if err := mcpMgr.Connect(ctx); err != nil {
			return err
		}
		if err := mcpMgr.RegisterTools(loop.Tools()); err != nil {
			return fmt.Errorf("failed to register mcp tools: %w", err)
		}
		for _, status := range mcpMgr.Statuses() {
			if status.Degraded {
				slog.Warn("mcp server degraded", "server", status.Name, "message", status.Message)
			}
		}
	}

	runner := tools.NewExecRunner(cfg.Tools.Exec.Timeout, cfg.Tools.Exec.RestrictToWorkspace, workspacePath)
	executor := agent.NewExecutor(approvals, results, runner, audit.NewWriter(workspacePath), msgBus)

	reapSvc := reaper.NewService(time.Duration(cfg.Pending.ReapInterval)*time.Second, inputs, approvals, results)
	reapSvc.Start()

	errCh := make(chan error, 2)
	go func() {
		if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("agent loop failed: %w", err)
		}
	}()

	chanMgr := channel.NewManager(msgBus)

	if cfg.Channels.Telegram.Enabled {
		tg := telegram.New(&cfg.Channels.Telegram, msgBus, inputs, executor, notifier)
		chanMgr.Register(tg)
	}

	chanMgr.StartAll(ctx)
	go chanMgr.RouteOutbound(ctx)

	gatewayServer := gateway.New(cfg.Gateway, loop, gateway.Deps{
		Inputs:    inputs,
		Approvals: approvals,
		Decider:   executor,
		Notifier:  notifier,
	})
	go func() {
		if err := gatewayServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("gateway server failed: %w", err)
		}
	}()

	fmt.Printf("Seeker server running. Gateway: http://%s\nPress Ctrl+C to stop.\n", gatewayServer.Addr())

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		slog.Error("server component failed", "error", runErr)
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	slog.Info("shutting down")
	reapSvc.Stop()
	chanMgr.StopAll(shutdownCtx)
	if err := gatewayServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("gateway shutdown failed", "error", err)
	}

	return runErr
}
