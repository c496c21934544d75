package tools

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/dkovac/seeker/internal/memory"
)

// memoryTools wraps one memory.Manager behind the memory-facing tool set.
type memoryTools struct {
	manager *memory.Manager
}

type ReadMemoryInput struct{}

type ReadMemoryOutput struct {
	Content string `json:"content"`
}

func (t *memoryTools) readMemory(ctx context.Context, input *ReadMemoryInput) (*ReadMemoryOutput, error) {
	content, err := t.manager.ReadLongTerm()
	if err != nil {
		return nil, err
	}
	return &ReadMemoryOutput{Content: content}, nil
}

type WriteMemoryInput struct {
	Content string `json:"content" jsonschema:"required,description=Content to store as long-term memory"`
}

func (t *memoryTools) writeMemory(ctx context.Context, input *WriteMemoryInput) (string, error) {
	if err := t.manager.WriteLongTerm(input.Content); err != nil {
		return "", err
	}
	return "Memory updated successfully", nil
}

type AppendDiaryInput struct {
	Entry string `json:"entry" jsonschema:"required,description=Diary entry content to append"`
}

type AppendDiaryOutput struct {
	DiaryPath string `json:"diary_path"`
}

func (t *memoryTools) appendDiary(ctx context.Context, input *AppendDiaryInput) (*AppendDiaryOutput, error) {
	path, err := t.manager.AppendDiary(input.Entry)
	if err != nil {
		return nil, err
	}
	return &AppendDiaryOutput{DiaryPath: path}, nil
}

type SaveInsightInput struct {
	Name    string `json:"name" jsonschema:"required,description=File name for the insight, e.g. deploy-checklist.md"`
	Content string `json:"content" jsonschema:"required,description=The insight content to store permanently"`
}

func (t *memoryTools) saveInsight(ctx context.Context, input *SaveInsightInput) (string, error) {
	path, err := t.manager.SaveInsight(input.Name, input.Content)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Insight saved to %s; it will be loaded into future sessions", path), nil
}

func NewReadMemoryTool(workspacePath string) (tool.InvokableTool, error) {
	impl := &memoryTools{manager: memory.NewManager(workspacePath)}
	return utils.InferTool("read_memory", "Read long-term memory from memory/MEMORY.md", impl.readMemory)
}

func NewWriteMemoryTool(workspacePath string) (tool.InvokableTool, error) {
	impl := &memoryTools{manager: memory.NewManager(workspacePath)}
	return utils.InferTool("write_memory", "Write long-term memory to memory/MEMORY.md", impl.writeMemory)
}

func NewAppendDiaryTool(workspacePath string) (tool.InvokableTool, error) {
	impl := &memoryTools{manager: memory.NewManager(workspacePath)}
	return utils.InferTool("append_diary", "Append a diary entry under memory/YYYY-MM-DD.md", impl.appendDiary)
}

func NewSaveInsightTool(workspacePath string) (tool.InvokableTool, error) {
	impl := &memoryTools{manager: memory.NewManager(workspacePath)}
	return utils.InferTool("save_insight", "Save an important discovery or note to memory/insights for permanent recall", impl.saveInsight)
}
