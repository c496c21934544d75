package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPDFExtractTool_Name(t *testing.T) {
	tool, err := NewPDFExtractTool(t.TempDir())
	if err != nil {
		t.Fatalf("NewPDFExtractTool error: %v", err)
	}
	info, err := tool.Info(context.Background())
	if err != nil {
		t.Fatalf("Info error: %v", err)
	}
	if info.Name != "pdf_extract" {
		t.Fatalf("expected tool name pdf_extract, got %q", info.Name)
	}
}

func TestPDFExtractTool_RejectsEmptyPath(t *testing.T) {
	tool, err := NewPDFExtractTool(t.TempDir())
	if err != nil {
		t.Fatalf("NewPDFExtractTool error: %v", err)
	}
	if _, err := tool.InvokableRun(context.Background(), `{"path": "  "}`); err == nil {
		t.Fatal("expected error for empty path, got nil")
	}
}

func TestPDFExtractTool_BlocksPathTraversal(t *testing.T) {
	workspace := t.TempDir()
	tool, err := NewPDFExtractTool(workspace)
	if err != nil {
		t.Fatalf("NewPDFExtractTool error: %v", err)
	}

	outside := filepath.Join(workspace, "..", "report.pdf")
	argsJSON := fmt.Sprintf(`{"path": %q}`, outside)
	_, err = tool.InvokableRun(context.Background(), argsJSON)
	if err == nil {
		t.Fatal("expected error for path traversal, got nil")
	}
	if !strings.Contains(err.Error(), "access denied") {
		t.Fatalf("expected access denied, got: %v", err)
	}
}

func TestPDFExtractTool_RejectsNonPDF(t *testing.T) {
	workspace := t.TempDir()
	target := filepath.Join(workspace, "notes.pdf")
	if err := os.WriteFile(target, []byte("just plain text, no pdf header"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	tool, err := NewPDFExtractTool(workspace)
	if err != nil {
		t.Fatalf("NewPDFExtractTool error: %v", err)
	}

	argsJSON := fmt.Sprintf(`{"path": %q}`, target)
	if _, err := tool.InvokableRun(context.Background(), argsJSON); err == nil {
		t.Fatal("expected error for non-PDF content, got nil")
	}
}

func TestPDFExtractTool_MissingFile(t *testing.T) {
	workspace := t.TempDir()
	tool, err := NewPDFExtractTool(workspace)
	if err != nil {
		t.Fatalf("NewPDFExtractTool error: %v", err)
	}

	argsJSON := fmt.Sprintf(`{"path": %q}`, filepath.Join(workspace, "missing.pdf"))
	if _, err := tool.InvokableRun(context.Background(), argsJSON); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}
