package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/dkovac/seeker/internal/config"
	"github.com/spf13/cobra"
)

func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show Seeker configuration status",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	workspacePath, err := cfg.WorkspacePathChecked()
	if err != nil {
		return fmt.Errorf("invalid workspace: %w", err)
	}

	fmt.Println("=== Seeker Status ===")
	fmt.Println()

	fmt.Printf("Config: %s\n", config.ConfigPath())
	if _, err := os.Stat(config.ConfigPath()); err == nil {
		fmt.Println("  Status: OK")
	} else {
		fmt.Println("  Status: Not found (run 'seeker init')")
	}

	fmt.Printf("\nWorkspace: %s\n", workspacePath)
	if _, err := os.Stat(workspacePath); err == nil {
		fmt.Println("  Status: OK")
	} else {
		fmt.Println("  Status: Not found")
	}
	workspaceMode := strings.TrimSpace(cfg.Agents.Defaults.WorkspaceMode)
	if workspaceMode == "" {
		workspaceMode = "default"
	}
	fmt.Printf("  Mode: %s\n", workspaceMode)

	fmt.Printf("\nModel: %s\n", cfg.Agents.Defaults.Model)

	fmt.Println("\nProviders:")
	providers := map[string]string{
		"OpenRouter": cfg.Providers.OpenRouter.APIKey,
		"Claude":     cfg.Providers.Claude.APIKey,
		"OpenAI":     cfg.Providers.OpenAI.APIKey,
		"DeepSeek":   cfg.Providers.DeepSeek.APIKey,
		"Ollama":     cfg.Providers.Ollama.BaseURL,
	}

	for name, key := range providers {
		status := "Not configured"
		if key != "" {
			status = "Configured"
		}
		fmt.Printf("  %s: %s\n", name, status)
	}

	// Tools
	fmt.Println("\nTools:")
	fmt.Println("  read_file: ready")
	fmt.Println("  write_file: ready")
	fmt.Println("  edit_file: ready")
	fmt.Println("  append_file: ready")
	fmt.Println("  list_dir: ready")
	fmt.Println("  read_memory: ready")
	fmt.Println("  write_memory: ready")
	fmt.Println("  append_diary: ready")
	fmt.Printf("  exec: ready, approval required (timeout=%ds, restrict_to_workspace=%v)\n", cfg.Tools.Exec.Timeout, cfg.Tools.Exec.RestrictToWorkspace)
	fmt.Printf("  ask_user: ready (input_timeout=%ds)\n", cfg.Pending.InputTimeout)
	fmt.Println("  web_fetch: ready")
	webSearchStatus := "enabled (DuckDuckGo fallback)"
	if strings.TrimSpace(cfg.Tools.Web.Search.APIKey) != "" {
		webSearchStatus = "enabled (Brave + DuckDuckGo fallback)"
	}
	fmt.Printf("  web_search: %s\n", webSearchStatus)

	// Pending coordination
	fmt.Println("\nPending:")
	fmt.Printf("  Input timeout:    %ds\n", cfg.Pending.InputTimeout)
	fmt.Printf("  Input retention:  %ds\n", cfg.Pending.InputRetention)
	fmt.Printf("  Tool retention:   %ds\n", cfg.Pending.ToolRetention)
	fmt.Printf("  Result retention: %ds\n", cfg.Pending.ResultRetention)
	fmt.Printf("  Reap interval:    %ds\n", cfg.Pending.ReapInterval)

	// Channels
	fmt.Println("\nChannels:")
	tgLine := "disabled"
	if cfg.Channels.Telegram.Enabled {
		tgLine = "enabled"
		if strings.TrimSpace(cfg.Channels.Telegram.Token) == "" {
			tgLine += " (missing token)"
		} else if strings.TrimSpace(cfg.Channels.Telegram.OperatorChatID) != "" {
			tgLine += " (ready, operator notifications on)"
		} else {
			tgLine += " (ready)"
		}
	}
	fmt.Printf("  Telegram: %s\n", tgLine)

	// Gateway
	fmt.Println("\nGateway:")
	fmt.Printf("  Address: %s:%d\n", cfg.Gateway.Host, cfg.Gateway.Port)
	if cfg.Gateway.Token != "" {
		fmt.Println("  Auth:    token configured")
	} else {
		fmt.Println("  Auth:    no token (open)")
	}

	return nil
}
