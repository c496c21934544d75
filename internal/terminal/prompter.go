// Package terminal is the local stdin responder. It competes with the web
// gateway and chat channels for the same pending entries; whichever side
// answers first wins and the loser just gets told so.
package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/dkovac/seeker/internal/input"
	"github.com/dkovac/seeker/internal/notify"
)

// Decider applies human decisions to queued tool executions.
type Decider interface {
	Approve(id, userResponse, decidedBy string) bool
	Deny(id, reason, decidedBy string) bool
}

// Prompter prints pending requests to the terminal and feeds typed replies
// back into the stores.
type Prompter struct {
	inputs   *input.Registry
	decider  Decider
	notifier *notify.Notifier
	in       io.Reader
	out      io.Writer
}

// NewPrompter creates a prompter reading from in and writing to out.
func NewPrompter(inputs *input.Registry, decider Decider, notifier *notify.Notifier, in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		inputs:   inputs,
		decider:  decider,
		notifier: notifier,
		in:       in,
		out:      out,
	}
}

// Run blocks until ctx is cancelled, prompting for every pending event.
// Prompts are handled one at a time; events that arrive while the user is
// typing wait in the subscription buffer.
func (p *Prompter) Run(ctx context.Context) {
	events, cancel := p.notifier.Subscribe()
	defer cancel()

	lines := make(chan string)
	go p.readLines(ctx, lines)

	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-events:
			p.HandleEvent(ctx, evt, lines)
		}
	}
}

// HandleEvent processes a single pending event, reading any reply from lines.
// Exposed so a caller that owns the stdin pump (the chat REPL) can multiplex
// prompts with its own reads instead of racing the prompter for lines.
func (p *Prompter) HandleEvent(ctx context.Context, evt notify.Event, lines <-chan string) {
	switch evt.Type {
	case notify.TypeInputPending:
		p.promptInput(ctx, evt, lines)
	case notify.TypeToolPending:
		p.promptApproval(ctx, evt, lines)
	case notify.TypeToolUpdate:
		fmt.Fprintf(p.out, "[tool %v] %v -> %v\n", evt.Payload["id"], evt.Payload["tool_name"], evt.Payload["status"])
	}
}

func (p *Prompter) readLines(ctx context.Context, lines chan<- string) {
	scanner := bufio.NewScanner(p.in)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
	close(lines)
}

func (p *Prompter) promptInput(ctx context.Context, evt notify.Event, lines <-chan string) {
	id := fmt.Sprint(evt.Payload["id"])
	fmt.Fprintf(p.out, "\n[input needed] %v\n> ", evt.Payload["prompt"])

	select {
	case <-ctx.Done():
		return
	case line, ok := <-lines:
		if !ok {
			return
		}
		if p.inputs.Answer(id, strings.TrimSpace(line), "terminal") {
			fmt.Fprintln(p.out, "answer recorded")
		} else {
			fmt.Fprintln(p.out, "too late: answered elsewhere or expired")
		}
	}
}

func (p *Prompter) promptApproval(ctx context.Context, evt notify.Event, lines <-chan string) {
	id := fmt.Sprint(evt.Payload["id"])
	fmt.Fprintf(p.out, "\n[approval needed] %v %v\napprove? [y/N or reason]: ", evt.Payload["tool_name"], evt.Payload["args"])

	select {
	case <-ctx.Done():
		return
	case line, ok := <-lines:
		if !ok {
			return
		}
		answer := strings.TrimSpace(line)
		var accepted bool
		switch strings.ToLower(answer) {
		case "y", "yes", "approve":
			accepted = p.decider.Approve(id, "", "terminal")
		case "", "n", "no", "deny":
			accepted = p.decider.Deny(id, "", "terminal")
		default:
			accepted = p.decider.Deny(id, answer, "terminal")
		}
		if accepted {
			fmt.Fprintln(p.out, "decision recorded")
		} else {
			fmt.Fprintln(p.out, "too late: decided elsewhere")
		}
		slog.Debug("terminal decision", "id", id, "accepted", accepted)
	}
}
