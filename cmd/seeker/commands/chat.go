package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dkovac/seeker/internal/agent"
	"github.com/dkovac/seeker/internal/approval"
	"github.com/dkovac/seeker/internal/audit"
	"github.com/dkovac/seeker/internal/bus"
	"github.com/dkovac/seeker/internal/config"
	"github.com/dkovac/seeker/internal/input"
	"github.com/dkovac/seeker/internal/mailbox"
	"github.com/dkovac/seeker/internal/notify"
	"github.com/dkovac/seeker/internal/provider"
	"github.com/dkovac/seeker/internal/terminal"
	"github.com/dkovac/seeker/internal/tools"
	"github.com/spf13/cobra"
)

func NewChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with Seeker",
		RunE:  runChat,
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	workspacePath, err := cfg.WorkspacePathChecked()
	if err != nil {
		return fmt.Errorf("invalid workspace: %w", err)
	}

	model, err := provider.NewChatModel(ctx, cfg)
	if err != nil {
		fmt.Printf("Warning: %v\n", err)
		fmt.Println("Running without LLM (tools only mode)")
		model = nil
	}

	notifier := notify.New()
	stores := agent.Stores{
		Inputs: input.NewRegistry(notifier,
			input.WithPollInterval(time.Duration(cfg.Pending.PollIntervalMs)*time.Millisecond),
			input.WithRetention(time.Duration(cfg.Pending.InputRetention)*time.Second)),
		Approvals: approval.NewQueue(notifier,
			approval.WithRetention(time.Duration(cfg.Pending.ToolRetention)*time.Second)),
		Results: mailbox.New(
			mailbox.WithRetention(time.Duration(cfg.Pending.ResultRetention) * time.Second)),
	}

	msgBus := bus.NewMessageBus(10)
	loop, err := agent.NewLoop(cfg, msgBus, model, stores)
	if err != nil {
		return fmt.Errorf("invalid workspace: %w", err)
	}
	if err := loop.RegisterDefaultTools(cfg); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}

	runner := tools.NewExecRunner(cfg.Tools.Exec.Timeout, cfg.Tools.Exec.RestrictToWorkspace, workspacePath)
	executor := agent.NewExecutor(stores.Approvals, stores.Results, runner, audit.NewWriter(workspacePath), msgBus)

	if len(args) > 0 {
		message := strings.Join(args, " ")
		resp, err := loop.ProcessDirect(ctx, message)
		if err != nil {
			return err
		}
		fmt.Println(resp)
		return nil
	}

	return chatREPL(ctx, loop, stores, executor, notifier)
}

type turnResult struct {
	resp string
	err  error
}

// chatREPL multiplexes the user's chat lines with pending-work prompts over a
// single stdin pump, so an approval question never fights the next chat
// message for the same keystrokes.
func chatREPL(ctx context.Context, loop *agent.Loop, stores agent.Stores, executor *agent.Executor, notifier *notify.Notifier) error {
	prompter := terminal.NewPrompter(stores.Inputs, executor, notifier, os.Stdin, os.Stdout)
	events, cancelSub := notifier.Subscribe()
	defer cancelSub()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		close(lines)
	}()

	fmt.Println("Seeker ready. Type 'exit' to quit.")

	turnCh := make(chan turnResult, 1)
	busy := false
	fmt.Print("\n> ")

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt := <-events:
			prompter.HandleEvent(ctx, evt, lines)
			if !busy {
				fmt.Print("\n> ")
			}

		case res := <-turnCh:
			busy = false
			if res.err != nil {
				fmt.Printf("Error: %v\n", res.err)
			} else if res.resp != "" {
				fmt.Println(res.resp)
			}
			fmt.Print("\n> ")

		case line, ok := <-lines:
			if !ok {
				return nil
			}
			text := strings.TrimSpace(line)
			if text == "exit" || text == "quit" {
				return nil
			}
			if text == "" || busy {
				if !busy {
					fmt.Print("\n> ")
				}
				continue
			}
			busy = true
			go func(msg string) {
				resp, err := loop.ProcessDirect(ctx, msg)
				turnCh <- turnResult{resp: resp, err: err}
			}(text)
		}
	}
}
