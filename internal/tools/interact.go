package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"

	"github.com/dkovac/seeker/internal/input"
)

// AskUserInput parameters for ask_user tool
type AskUserInput struct {
	Question string `json:"question" jsonschema:"required,description=The question to ask the human"`
	Timeout  int    `json:"timeout" jsonschema:"description=Seconds to wait for an answer before giving up"`
}

// AskUserOutput result of ask_user tool
type AskUserOutput struct {
	Answer string `json:"answer"`
	Source string `json:"source,omitempty"`
}

type askUserImpl struct {
	registry       *input.Registry
	defaultTimeout time.Duration
}

// ask registers the question, waits for whichever connected source answers
// first, and returns that answer. When nobody answers in time the model gets
// the literal "no input" so it can proceed on its own judgment.
func (a *askUserImpl) ask(ctx context.Context, in *AskUserInput) (*AskUserOutput, error) {
	if in.Question == "" {
		return nil, fmt.Errorf("question is required")
	}

	timeout := a.defaultTimeout
	if in.Timeout > 0 {
		timeout = time.Duration(in.Timeout) * time.Second
	}

	id := a.registry.Create(in.Question)
	answer, source := a.registry.Await(ctx, id, timeout)
	return &AskUserOutput{Answer: answer, Source: source}, nil
}

// NewAskUserTool creates the ask_user tool. timeoutSec is the default wait
// applied when the model does not pass an explicit timeout.
func NewAskUserTool(registry *input.Registry, timeoutSec int) (tool.InvokableTool, error) {
	if timeoutSec <= 0 {
		timeoutSec = 300
	}
	impl := &askUserImpl{
		registry:       registry,
		defaultTimeout: time.Duration(timeoutSec) * time.Second,
	}
	return utils.InferTool("ask_user", "Ask the human a question and wait for their reply. Returns \"no input\" if nobody answers in time.", impl.ask)
}
