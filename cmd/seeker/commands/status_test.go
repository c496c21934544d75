package commands

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/dkovac/seeker/internal/config"
)

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

func TestStatusCommand_PrintsConfig(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("USERPROFILE", tmpDir)

	output := captureOutput(t, func() {
		if err := runStatus(nil, nil); err != nil {
			t.Fatalf("runStatus error: %v", err)
		}
	})

	cleanOutput := stripANSI(output)

	if !strings.Contains(cleanOutput, "Seeker Status") {
		t.Fatalf("expected status output, got: %s", cleanOutput)
	}
	if !strings.Contains(cleanOutput, "Config:") {
		t.Fatalf("expected config section, got: %s", cleanOutput)
	}
	if !strings.Contains(cleanOutput, "Mode:") {
		t.Fatalf("expected workspace mode line, got: %s", cleanOutput)
	}
	if !strings.Contains(cleanOutput, "exec: ready, approval required") {
		t.Fatalf("expected exec approval line, got: %s", cleanOutput)
	}
	if !strings.Contains(cleanOutput, "ask_user: ready") {
		t.Fatalf("expected ask_user readiness line, got: %s", cleanOutput)
	}
	if !strings.Contains(cleanOutput, "Pending:") {
		t.Fatalf("expected pending section, got: %s", cleanOutput)
	}
	if !strings.Contains(cleanOutput, "Gateway:") {
		t.Fatalf("expected gateway section, got: %s", cleanOutput)
	}
}

func TestStatusCommand_InvalidWorkspaceModeReturnsError(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("USERPROFILE", tmpDir)

	configPath := config.ConfigPath()
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	raw := `{
  "agents": {
    "defaults": {
      "workspace_mode": "path",
      "workspace": ""
    }
  }
}`

	if err := os.WriteFile(configPath, []byte(raw), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := runStatus(nil, nil); err == nil {
		t.Fatal("expected error")
	}
}
