package command

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// PendingCommand implements /pending — lists tool calls waiting for approval
// and unanswered input requests.
type PendingCommand struct{}

func (c *PendingCommand) Name() string        { return "pending" }
func (c *PendingCommand) Description() string { return "List pending approvals and input requests" }

func (c *PendingCommand) Execute(_ context.Context, _ string, env Env) Result {
	var sb strings.Builder

	if env.Approvals != nil {
		tools := env.Approvals.Pending()
		sb.WriteString(fmt.Sprintf("**Pending approvals (%d):**\n\n", len(tools)))
		for _, t := range tools {
			sb.WriteString(fmt.Sprintf("- `%s` %s %v (since %s)\n",
				t.ID, t.ToolName, t.Args, t.CreatedAt.Format(time.TimeOnly)))
		}
	}

	if env.Inputs != nil {
		reqs := env.Inputs.Pending()
		sb.WriteString(fmt.Sprintf("\n**Pending input requests (%d):**\n\n", len(reqs)))
		for _, r := range reqs {
			sb.WriteString(fmt.Sprintf("- `%s` %s (since %s)\n",
				r.ID, r.Prompt, r.CreatedAt.Format(time.TimeOnly)))
		}
	}

	if sb.Len() == 0 {
		return Result{Content: "Nothing pending."}
	}
	return Result{Content: sb.String()}
}
