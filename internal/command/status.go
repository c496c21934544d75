package command

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dkovac/seeker/internal/config"
)

// StatusCommand implements /status — shows runtime status summary.
type StatusCommand struct{}

func (c *StatusCommand) Name() string        { return "status" }
func (c *StatusCommand) Description() string { return "Show runtime status" }

func (c *StatusCommand) Execute(_ context.Context, _ string, env Env) Result {
	var sb strings.Builder
	sb.WriteString("**Seeker Status**\n\n")

	// Model & Workspace
	if env.Config != nil {
		sb.WriteString(fmt.Sprintf("- **Model:** `%s`\n", env.Config.Agents.Defaults.Model))
	}
	sb.WriteString(fmt.Sprintf("- **Workspace:** `%s`\n", env.WorkspacePath))

	// Providers
	if env.Config != nil {
		sb.WriteString("\n**Providers:**\n\n")
		for name, key := range map[string]string{
			"OpenRouter": env.Config.Providers.OpenRouter.APIKey,
			"Claude":     env.Config.Providers.Claude.APIKey,
			"OpenAI":     env.Config.Providers.OpenAI.APIKey,
			"DeepSeek":   env.Config.Providers.DeepSeek.APIKey,
			"Ollama":     env.Config.Providers.Ollama.BaseURL,
		} {
			status := "not configured"
			if strings.TrimSpace(key) != "" {
				status = "configured"
			}
			sb.WriteString(fmt.Sprintf("- %s: %s\n", name, status))
		}
	}

	// Pending coordination state
	sb.WriteString("\n**Pending:**\n\n")
	if env.Approvals != nil {
		sb.WriteString(fmt.Sprintf("- Tool approvals: %d\n", len(env.Approvals.Pending())))
	}
	if env.Inputs != nil {
		sb.WriteString(fmt.Sprintf("- Input requests: %d\n", len(env.Inputs.Pending())))
	}
	if env.Results != nil {
		sb.WriteString(fmt.Sprintf("- Undelivered results: %d\n", len(env.Results.Undelivered())))
	}

	// Config path
	configStatus := ""
	if _, err := os.Stat(config.ConfigPath()); err != nil {
		configStatus = " (not found)"
	}
	sb.WriteString(fmt.Sprintf("\n- **Config:** `%s`%s\n", config.ConfigPath(), configStatus))

	return Result{Content: sb.String()}
}
