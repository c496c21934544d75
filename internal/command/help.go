package command

import (
	"context"
	"fmt"
	"strings"
)

// HelpCommand implements /help, listing every registered slash command.
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "List available slash commands" }

func (c *HelpCommand) Execute(_ context.Context, _ string, env Env) Result {
	var sb strings.Builder
	sb.WriteString("**Available commands:**\n\n")
	for _, cmd := range env.ListCommands() {
		sb.WriteString(fmt.Sprintf("- `/%s`: %s\n", cmd.Name(), cmd.Description()))
	}
	return Result{Content: sb.String()}
}
