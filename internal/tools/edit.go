package tools

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
)

// EditFileInput parameters for edit_file tool.
type EditFileInput struct {
	Path    string `json:"path" jsonschema:"required,description=Absolute path to the file"`
	OldText string `json:"old_text" jsonschema:"required,description=Exact existing text to replace"`
	NewText string `json:"new_text" jsonschema:"required,description=Replacement text"`
}

// AppendFileInput parameters for append_file tool.
type AppendFileInput struct {
	Path    string `json:"path" jsonschema:"required,description=Absolute path to the file"`
	Content string `json:"content" jsonschema:"required,description=Content to append to file end"`
}

// fileEditTools mutates files in place, always inside the workspace.
type fileEditTools struct {
	workspacePath string
}

func (t *fileEditTools) editFile(ctx context.Context, input *EditFileInput) (string, error) {
	if err := validatePath(input.Path, t.workspacePath); err != nil {
		return "", err
	}
	if input.OldText == "" {
		return "", fmt.Errorf("old_text must not be empty")
	}

	data, err := os.ReadFile(input.Path)
	if err != nil {
		return "", err
	}

	updated, line, err := replaceUnique(string(data), input.OldText, input.NewText)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(input.Path, []byte(updated), 0644); err != nil {
		return "", err
	}
	return fmt.Sprintf("Edited %s at line %d", input.Path, line), nil
}

func (t *fileEditTools) appendFile(ctx context.Context, input *AppendFileInput) (string, error) {
	if err := validatePath(input.Path, t.workspacePath); err != nil {
		return "", err
	}
	if strings.TrimSpace(input.Content) == "" {
		return "", fmt.Errorf("content must not be empty")
	}

	f, err := os.OpenFile(input.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", err
	}
	defer f.Close()

	n, err := f.WriteString(input.Content)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Appended %d bytes to %s", n, input.Path), nil
}

// replaceUnique swaps old for new only when old occurs exactly once, and
// reports the 1-indexed line where the replacement starts. An ambiguous
// snippet never silently edits the wrong place; the error names every
// matching line so the caller can widen the snippet.
func replaceUnique(content, old, new string) (string, int, error) {
	lines := matchLines(content, old)
	switch len(lines) {
	case 0:
		return "", 0, fmt.Errorf("old_text not found in file")
	case 1:
		return strings.Replace(content, old, new, 1), lines[0], nil
	default:
		return "", 0, fmt.Errorf("old_text matches multiple locations (lines %s); provide a unique snippet", joinLines(lines))
	}
}

// matchLines returns the 1-indexed starting line of every occurrence of
// needle in content.
func matchLines(content, needle string) []int {
	var lines []int
	offset := 0
	for {
		i := strings.Index(content[offset:], needle)
		if i < 0 {
			return lines
		}
		at := offset + i
		lines = append(lines, 1+strings.Count(content[:at], "\n"))
		offset = at + len(needle)
	}
}

func joinLines(lines []int) string {
	parts := make([]string, len(lines))
	for i, n := range lines {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}

// NewEditFileTool creates the edit_file tool.
func NewEditFileTool(workspacePath string) (tool.InvokableTool, error) {
	impl := &fileEditTools{workspacePath: workspacePath}
	return utils.InferTool("edit_file", "Edit one exact snippet in a file via old_text -> new_text replacement", impl.editFile)
}

// NewAppendFileTool creates the append_file tool.
func NewAppendFileTool(workspacePath string) (tool.InvokableTool, error) {
	impl := &fileEditTools{workspacePath: workspacePath}
	return utils.InferTool("append_file", "Append content to a file", impl.appendFile)
}
