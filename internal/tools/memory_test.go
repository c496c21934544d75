package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMemoryTools_ReadWrite(t *testing.T) {
	workspace := t.TempDir()

	writeTool, err := NewWriteMemoryTool(workspace)
	if err != nil {
		t.Fatalf("NewWriteMemoryTool error: %v", err)
	}
	readTool, err := NewReadMemoryTool(workspace)
	if err != nil {
		t.Fatalf("NewReadMemoryTool error: %v", err)
	}

	ctx := context.Background()
	writeArgs := `{"content":"important memory"}`
	if _, err := writeTool.InvokableRun(ctx, writeArgs); err != nil {
		t.Fatalf("write memory error: %v", err)
	}

	result, err := readTool.InvokableRun(ctx, `{}`)
	if err != nil {
		t.Fatalf("read memory error: %v", err)
	}
	if !strings.Contains(result, "important memory") {
		t.Fatalf("expected written memory in output, got: %s", result)
	}
}

func TestAppendDiaryTool(t *testing.T) {
	workspace := t.TempDir()
	appendTool, err := NewAppendDiaryTool(workspace)
	if err != nil {
		t.Fatalf("NewAppendDiaryTool error: %v", err)
	}

	ctx := context.Background()
	if _, err := appendTool.InvokableRun(ctx, `{"entry":"today summary"}`); err != nil {
		t.Fatalf("append diary error: %v", err)
	}

	files, err := os.ReadDir(filepath.Join(workspace, "memory"))
	if err != nil {
		t.Fatalf("ReadDir memory: %v", err)
	}
	foundDiary := false
	for _, f := range files {
		if strings.HasSuffix(f.Name(), ".md") && f.Name() != "MEMORY.md" {
			foundDiary = true
		}
	}
	if !foundDiary {
		t.Fatal("expected a diary markdown file to be created")
	}
}

func TestSaveInsightTool(t *testing.T) {
	workspace := t.TempDir()
	insightTool, err := NewSaveInsightTool(workspace)
	if err != nil {
		t.Fatalf("NewSaveInsightTool error: %v", err)
	}

	ctx := context.Background()
	result, err := insightTool.InvokableRun(ctx, `{"name":"rate-limits","content":"API allows 30 req/min"}`)
	if err != nil {
		t.Fatalf("save insight error: %v", err)
	}
	if !strings.Contains(result, "rate-limits.md") {
		t.Fatalf("expected saved path in output, got: %s", result)
	}

	data, err := os.ReadFile(filepath.Join(workspace, "memory", "insights", "rate-limits.md"))
	if err != nil {
		t.Fatalf("ReadFile insight: %v", err)
	}
	if !strings.Contains(string(data), "30 req/min") {
		t.Fatalf("unexpected insight content: %s", data)
	}
}

func TestWriteMemoryTool_OverwritesPrevious(t *testing.T) {
	workspace := t.TempDir()
	writeTool, err := NewWriteMemoryTool(workspace)
	if err != nil {
		t.Fatalf("NewWriteMemoryTool error: %v", err)
	}
	readTool, err := NewReadMemoryTool(workspace)
	if err != nil {
		t.Fatalf("NewReadMemoryTool error: %v", err)
	}

	ctx := context.Background()
	if _, err := writeTool.InvokableRun(ctx, `{"content":"first version"}`); err != nil {
		t.Fatalf("write memory error: %v", err)
	}
	if _, err := writeTool.InvokableRun(ctx, `{"content":"second version"}`); err != nil {
		t.Fatalf("write memory error: %v", err)
	}

	result, err := readTool.InvokableRun(ctx, `{}`)
	if err != nil {
		t.Fatalf("read memory error: %v", err)
	}
	if strings.Contains(result, "first version") {
		t.Fatalf("expected memory overwritten, got: %s", result)
	}
	if !strings.Contains(result, "second version") {
		t.Fatalf("expected latest memory, got: %s", result)
	}
}
