package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/dkovac/seeker/internal/mailbox"
	"github.com/dkovac/seeker/internal/memory"
	"github.com/dkovac/seeker/internal/session"
)

// ContextBuilder builds LLM context
type ContextBuilder struct {
	workspacePath string
}

// NewContextBuilder creates a context builder
func NewContextBuilder(workspacePath string) *ContextBuilder {
	return &ContextBuilder{workspacePath: workspacePath}
}

// BuildSystemPrompt assembles the system prompt
func (c *ContextBuilder) BuildSystemPrompt() string {
	var parts []string

	parts = append(parts, c.coreIdentity())

	bootstrapFiles := []string{"IDENTITY.md", "USER.md", "TOOLS.md", "AGENTS.md"}
	for _, name := range bootstrapFiles {
		if content := c.readWorkspaceFile(name); content != "" {
			parts = append(parts, "## "+strings.TrimSuffix(name, ".md")+"\n"+content)
		}
	}

	if mem := c.readWorkspaceFile(filepath.Join("memory", "MEMORY.md")); mem != "" {
		parts = append(parts, "## Long-term Memory\n"+mem)
	}

	if insights := c.buildInsightsSection(); insights != "" {
		parts = append(parts, insights)
	}

	if diary := c.buildRecentDiarySection(); diary != "" {
		parts = append(parts, diary)
	}

	return strings.Join(parts, "\n\n")
}

func (c *ContextBuilder) coreIdentity() string {
	return `You are Seeker, an autonomous assistant.
You have access to tools for file operations, web access, and shell commands.
Shell commands do not run immediately: they are queued until a human approves
them, and their results arrive in a later message. Use ask_user when you need
a human decision; if it returns "no input", proceed on your own best judgment.`
}

func (c *ContextBuilder) readWorkspaceFile(name string) string {
	path := filepath.Join(c.workspacePath, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (c *ContextBuilder) buildInsightsSection() string {
	insights, err := memory.NewManager(c.workspacePath).ListInsights()
	if err != nil || len(insights) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## Saved Insights")
	for _, insight := range insights {
		sb.WriteString(fmt.Sprintf("\n\n### %s\n%s", insight.Name, insight.Content))
	}
	return sb.String()
}

func (c *ContextBuilder) buildRecentDiarySection() string {
	memMgr := memory.NewManager(c.workspacePath)
	entries, err := memMgr.ReadRecentDiaries(3)
	if err != nil || len(entries) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## Recent Diary Entries")
	for _, entry := range entries {
		sb.WriteString(fmt.Sprintf("\n\n### %s\n%s", entry.Date, entry.Content))
	}
	return sb.String()
}

// BuildMessages constructs the full message list. The caller composes the
// current user turn, including any pending tool results, before calling.
func (c *ContextBuilder) BuildMessages(history []*session.Message, current string) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history)+2)

	messages = append(messages, &schema.Message{
		Role:    schema.System,
		Content: c.BuildSystemPrompt(),
	})

	for _, h := range history {
		role := schema.User
		if h.Role == "assistant" {
			role = schema.Assistant
		}
		messages = append(messages, &schema.Message{
			Role:    role,
			Content: h.Content,
		})
	}

	messages = append(messages, &schema.Message{
		Role:    schema.User,
		Content: strings.TrimSpace(current),
	})

	return messages
}

// ComposeUserTurn merges pending tool results with the incoming user text
// into one user turn. Either part may be empty.
func ComposeUserTurn(results []mailbox.Result, current string) string {
	section := RenderResultsSection(results)
	current = strings.TrimSpace(current)
	switch {
	case section == "":
		return current
	case current == "":
		return section
	default:
		return section + "\n\n" + current
	}
}

// RenderResultsSection renders completed tool outcomes as a prompt block.
// Returns "" when there is nothing to report.
func RenderResultsSection(results []mailbox.Result) string {
	if len(results) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## Completed tool results\n")
	sb.WriteString("The following previously queued tool calls have finished:\n")
	for _, r := range results {
		args := ""
		if len(r.Args) > 0 {
			if data, err := json.Marshal(r.Args); err == nil {
				args = string(data)
			}
		}
		sb.WriteString(fmt.Sprintf("\n### %s (id: %s)\n", r.ToolName, r.ToolID))
		if args != "" {
			sb.WriteString("Arguments: " + args + "\n")
		}
		sb.WriteString("Result:\n" + strings.TrimSpace(r.Result) + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
