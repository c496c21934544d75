package tools

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"

	"github.com/dkovac/seeker/internal/approval"
)

// ExecInput parameters for exec tool
type ExecInput struct {
	Command    string `json:"command" jsonschema:"required,description=Shell command to execute"`
	WorkingDir string `json:"working_dir" jsonschema:"description=Working directory for the command"`
}

// ExecOutput result of exec tool
type ExecOutput struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// dangerousPatterns are regex patterns that match dangerous commands.
// Commands matching these are rejected outright, never queued.
var dangerousPatterns = []*regexp.Regexp{
	// rm with force/recursive targeting root or home
	regexp.MustCompile(`(?i)\brm\s+(-[a-z]*r[a-z]*\s+-[a-z]*f[a-z]*|-[a-z]*f[a-z]*\s+-[a-z]*r[a-z]*|-[a-z]*rf[a-z]*|-[a-z]*fr[a-z]*)\s+/\s*$`),
	regexp.MustCompile(`(?i)\brm\s+(-[a-z]*r[a-z]*\s+-[a-z]*f[a-z]*|-[a-z]*f[a-z]*\s+-[a-z]*r[a-z]*|-[a-z]*rf[a-z]*|-[a-z]*fr[a-z]*)\s+~`),
	// sudo variants of rm
	regexp.MustCompile(`(?i)\bsudo\s+rm\s+(-[a-z]*r[a-z]*\s+-[a-z]*f[a-z]*|-[a-z]*f[a-z]*\s+-[a-z]*r[a-z]*|-[a-z]*rf[a-z]*|-[a-z]*fr[a-z]*)\s+/\s*$`),
	// explicitly disabling root safeguards
	regexp.MustCompile(`(?i)--no-preserve-root`),
	// filesystem format commands
	regexp.MustCompile(`(?i)\bmkfs\b`),
	regexp.MustCompile(`(?i)\bdd\s+if=`),
	// fork bomb
	regexp.MustCompile(`:\(\)\s*\{.*\|.*&\s*\}\s*;`),
	// Windows dangerous commands
	regexp.MustCompile(`(?i)\bformat\s+[a-z]:`),
	regexp.MustCompile(`(?i)\bdel\s+/[a-z]\s+/[a-z]\s+/[a-z]`),
}

// isDangerous checks whether a command matches any dangerous command pattern.
func isDangerous(cmd string) (bool, string) {
	for _, pat := range dangerousPatterns {
		if pat.MatchString(cmd) {
			return true, pat.String()
		}
	}
	return false, ""
}

// ExecRunner runs shell commands that already passed human approval.
type ExecRunner struct {
	timeout             time.Duration
	restrictToWorkspace bool
	workspaceDir        string
}

// NewExecRunner creates a runner with the given timeout and workspace policy.
func NewExecRunner(timeoutSec int, restrictToWorkspace bool, workspaceDir string) *ExecRunner {
	return &ExecRunner{
		timeout:             time.Duration(timeoutSec) * time.Second,
		restrictToWorkspace: restrictToWorkspace,
		workspaceDir:        workspaceDir,
	}
}

// Run executes the command and captures its output. It never returns an error
// for command failures; those are reported through ExitCode and Stderr.
func (r *ExecRunner) Run(ctx context.Context, command, workingDir string) *ExecOutput {
	workDir := workingDir
	if r.restrictToWorkspace && r.workspaceDir != "" {
		if workDir != "" {
			if err := validatePath(workDir, r.workspaceDir); err != nil {
				return &ExecOutput{
					Stderr:   fmt.Sprintf("Working directory rejected: %s", err.Error()),
					ExitCode: 1,
				}
			}
		} else {
			workDir = r.workspaceDir
		}
	} else if workDir == "" && r.workspaceDir != "" {
		workDir = r.workspaceDir
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(timeoutCtx, "cmd", "/C", command)
	} else {
		cmd = exec.CommandContext(timeoutCtx, "sh", "-c", command)
	}

	if workDir != "" {
		cmd.Dir = workDir
	}

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return &ExecOutput{
				Stderr:   err.Error(),
				ExitCode: 1,
			}
		}
	}

	return &ExecOutput{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
	}
}

type execToolImpl struct {
	queue *approval.Queue
}

// propose never runs the command. It either rejects a dangerous command or
// parks it in the approval queue and tells the model to keep working.
func (e *execToolImpl) propose(ctx context.Context, input *ExecInput) (string, error) {
	if dangerous, pattern := isDangerous(input.Command); dangerous {
		return fmt.Sprintf("Blocked dangerous command matching pattern: %s", pattern), nil
	}

	args := map[string]any{"command": input.Command}
	if input.WorkingDir != "" {
		args["working_dir"] = input.WorkingDir
	}
	meta := InvocationFromContext(ctx)
	id := e.queue.ProposeFrom("exec", args, approval.Origin{
		Channel:   meta.Channel,
		ChatID:    meta.ChatID,
		RequestID: meta.RequestID,
	})

	return fmt.Sprintf(
		"Command queued for human approval (tool id: %s). It has NOT run yet. "+
			"The result will be delivered to you in a later message once a human approves and it finishes. "+
			"Continue with other work or end your turn; do not assume the command succeeded.",
		id,
	), nil
}

// NewExecTool creates the exec tool. Every invocation goes through the
// approval queue; execution happens out of band.
func NewExecTool(queue *approval.Queue) (tool.InvokableTool, error) {
	impl := &execToolImpl{queue: queue}
	return utils.InferTool("exec", "Propose a shell command for human approval. The command runs only after a human approves it; the result arrives asynchronously.", impl.propose)
}
