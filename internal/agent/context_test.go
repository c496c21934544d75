package agent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dkovac/seeker/internal/mailbox"
	"github.com/dkovac/seeker/internal/session"
)

func TestBuildSystemPrompt_IncludesWorkspaceFiles(t *testing.T) {
	workspace := t.TempDir()
	if err := os.WriteFile(filepath.Join(workspace, "IDENTITY.md"), []byte("# Identity\nTest identity"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(workspace, "memory"), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(workspace, "memory", "MEMORY.md"), []byte("remember the port"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	prompt := NewContextBuilder(workspace).BuildSystemPrompt()

	if !strings.Contains(prompt, "Test identity") {
		t.Fatalf("expected identity content, got: %s", prompt)
	}
	if !strings.Contains(prompt, "remember the port") {
		t.Fatalf("expected memory content, got: %s", prompt)
	}
	if !strings.Contains(prompt, "queued until a human approves") {
		t.Fatalf("expected approval guidance in core identity, got: %s", prompt)
	}
}

func TestBuildSystemPrompt_IncludesSavedInsights(t *testing.T) {
	workspace := t.TempDir()
	insightsDir := filepath.Join(workspace, "memory", "insights")
	if err := os.MkdirAll(insightsDir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(insightsDir, "api-notes.md"), []byte("rate limit is 30/min"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	prompt := NewContextBuilder(workspace).BuildSystemPrompt()

	if !strings.Contains(prompt, "## Saved Insights") {
		t.Fatalf("expected insights section, got: %s", prompt)
	}
	if !strings.Contains(prompt, "rate limit is 30/min") {
		t.Fatalf("expected insight content, got: %s", prompt)
	}
}

func TestBuildMessages_SystemHistoryCurrent(t *testing.T) {
	builder := NewContextBuilder(t.TempDir())

	history := []*session.Message{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	}
	messages := builder.BuildMessages(history, "what now?")

	if len(messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(messages))
	}
	if messages[0].Role != "system" {
		t.Fatalf("expected system first, got %s", messages[0].Role)
	}
	if messages[2].Role != "assistant" || messages[2].Content != "hello" {
		t.Fatalf("unexpected history mapping: %+v", messages[2])
	}
	if messages[3].Content != "what now?" {
		t.Fatalf("expected current turn last, got %q", messages[3].Content)
	}
}

func TestComposeUserTurn(t *testing.T) {
	results := []mailbox.Result{{
		ToolID:     "tool-1",
		ToolName:   "exec",
		Args:       map[string]any{"command": "ls"},
		Result:     "file.txt",
		ProducedAt: time.Now(),
	}}

	turn := ComposeUserTurn(results, "and then?")
	if !strings.Contains(turn, "## Completed tool results") {
		t.Fatalf("expected results section, got: %s", turn)
	}
	if !strings.Contains(turn, "exec (id: tool-1)") {
		t.Fatalf("expected tool heading, got: %s", turn)
	}
	if !strings.HasSuffix(turn, "and then?") {
		t.Fatalf("expected user text after results, got: %s", turn)
	}

	if got := ComposeUserTurn(nil, "just text"); got != "just text" {
		t.Fatalf("expected passthrough without results, got %q", got)
	}
	if got := ComposeUserTurn(results, ""); !strings.Contains(got, "file.txt") {
		t.Fatalf("expected results-only turn, got %q", got)
	}
	if got := ComposeUserTurn(nil, "   "); got != "" {
		t.Fatalf("expected empty turn, got %q", got)
	}
}

func TestRenderResultsSection_Empty(t *testing.T) {
	if got := RenderResultsSection(nil); got != "" {
		t.Fatalf("expected empty section, got %q", got)
	}
}
