package telegram

import (
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dkovac/seeker/internal/bus"
	"github.com/dkovac/seeker/internal/config"
	"github.com/dkovac/seeker/internal/input"
	"github.com/dkovac/seeker/internal/notify"
)

func TestMarkdownToHTML_RendersBoldAndCode(t *testing.T) {
	out := markdownToHTML("**b** `c`")
	if strings.Contains(out, "&lt;b&gt;") {
		t.Fatalf("expected bold tags to be real HTML, got: %s", out)
	}
	if !strings.Contains(out, "<b>b</b>") {
		t.Fatalf("expected bold to render, got: %s", out)
	}
	if !strings.Contains(out, "<code>c</code>") {
		t.Fatalf("expected code to render, got: %s", out)
	}
}

func TestRenderMessageHTML_IncludesThinkContent(t *testing.T) {
	out := renderMessageHTML("<think>**t**</think>**m**")
	if strings.Contains(out, "<think>") {
		t.Fatalf("expected think tags removed, got: %s", out)
	}
	if !strings.Contains(out, "Thinking:") {
		t.Fatalf("expected thinking label, got: %s", out)
	}
	if !strings.Contains(out, "<b>t</b>") || !strings.Contains(out, "<b>m</b>") {
		t.Fatalf("expected rendered think and main, got: %s", out)
	}
}

func TestParseInt64_Valid(t *testing.T) {
	got, err := parseInt64("12345")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if got != 12345 {
		t.Fatalf("expected 12345, got %d", got)
	}
}

func TestParseInt64_Invalid(t *testing.T) {
	if _, err := parseInt64("not-a-number"); err == nil {
		t.Fatal("expected error for invalid chat id")
	}
}

type fakeDecider struct {
	approved  []string
	denied    []string
	decidedBy string
	note      string
	accept    bool
}

func (f *fakeDecider) Approve(id, userResponse, decidedBy string) bool {
	f.approved = append(f.approved, id)
	f.note = userResponse
	f.decidedBy = decidedBy
	return f.accept
}

func (f *fakeDecider) Deny(id, reason, decidedBy string) bool {
	f.denied = append(f.denied, id)
	f.note = reason
	f.decidedBy = decidedBy
	return f.accept
}

func TestHandleOperatorCommand_Answer(t *testing.T) {
	reg := input.NewRegistry(nil)
	ch := New(&config.TelegramConfig{}, bus.NewMessageBus(1), reg, nil, nil)

	id := reg.Create("pick a color")
	reply, handled := ch.handleOperatorCommand("/answer "+id+" deep blue", "42")
	if !handled {
		t.Fatal("expected /answer to be handled")
	}
	if reply != "answer recorded" {
		t.Fatalf("unexpected reply: %q", reply)
	}

	// A second answer to the same request lost the race.
	reply, handled = ch.handleOperatorCommand("/answer "+id+" red", "42")
	if !handled || !strings.Contains(reply, "too late") {
		t.Fatalf("expected too-late reply, got %q (handled=%v)", reply, handled)
	}
}

func TestHandleOperatorCommand_ApproveAndDeny(t *testing.T) {
	dec := &fakeDecider{accept: true}
	ch := New(&config.TelegramConfig{}, bus.NewMessageBus(1), nil, dec, nil)

	reply, handled := ch.handleOperatorCommand("/approve tool-1 looks fine", "42")
	if !handled || reply != "approved" {
		t.Fatalf("expected approval, got %q (handled=%v)", reply, handled)
	}
	if len(dec.approved) != 1 || dec.approved[0] != "tool-1" {
		t.Fatalf("expected approve tool-1, got %v", dec.approved)
	}
	if dec.note != "looks fine" {
		t.Fatalf("expected note to pass through, got %q", dec.note)
	}
	if dec.decidedBy != "telegram:42" {
		t.Fatalf("expected sender in decidedBy, got %q", dec.decidedBy)
	}

	reply, handled = ch.handleOperatorCommand("/deny tool-2 too risky", "42")
	if !handled || reply != "denied" {
		t.Fatalf("expected denial, got %q (handled=%v)", reply, handled)
	}
	if len(dec.denied) != 1 || dec.denied[0] != "tool-2" {
		t.Fatalf("expected deny tool-2, got %v", dec.denied)
	}
}

func TestHandleOperatorCommand_LostDecisionRace(t *testing.T) {
	dec := &fakeDecider{accept: false}
	ch := New(&config.TelegramConfig{}, bus.NewMessageBus(1), nil, dec, nil)

	reply, handled := ch.handleOperatorCommand("/approve tool-9", "42")
	if !handled || !strings.Contains(reply, "too late") {
		t.Fatalf("expected too-late reply, got %q (handled=%v)", reply, handled)
	}
}

func TestHandleOperatorCommand_PassesThroughChat(t *testing.T) {
	ch := New(&config.TelegramConfig{}, bus.NewMessageBus(1), nil, nil, nil)

	if _, handled := ch.handleOperatorCommand("what is the weather", "42"); handled {
		t.Fatal("plain chat must not be intercepted")
	}
	if _, handled := ch.handleOperatorCommand("/new", "42"); handled {
		t.Fatal("unrelated slash commands must reach the agent")
	}
}

func TestHandleMessage_PublishesInbound(t *testing.T) {
	msgBus := bus.NewMessageBus(1)
	ch := New(&config.TelegramConfig{}, msgBus, nil, nil, nil)

	ch.handleMessage(&tgbotapi.Message{
		MessageID: 7,
		From:      &tgbotapi.User{ID: 123, UserName: "alice"},
		Chat:      &tgbotapi.Chat{ID: 42},
		Text:      "hello there",
	})

	select {
	case in := <-msgBus.Inbound():
		if in.Content != "hello there" {
			t.Fatalf("unexpected content %q", in.Content)
		}
		if in.ChatID != "42" || in.SenderID != "123" {
			t.Fatalf("unexpected routing: chat=%q sender=%q", in.ChatID, in.SenderID)
		}
		if in.RequestID == "" {
			t.Fatal("expected a request id")
		}
	default:
		t.Fatal("expected inbound message")
	}
}

func TestRenderEvent(t *testing.T) {
	text := renderEvent(notify.Event{
		Type:    notify.TypeInputPending,
		Payload: map[string]any{"id": "in-1", "prompt": "which env?"},
	})
	if !strings.Contains(text, "which env?") || !strings.Contains(text, "/answer in-1") {
		t.Fatalf("unexpected input event text: %q", text)
	}

	text = renderEvent(notify.Event{
		Type:    notify.TypeToolPending,
		Payload: map[string]any{"id": "tl-1", "tool_name": "exec", "args": `{"command":"ls"}`},
	})
	if !strings.Contains(text, "/approve tl-1") || !strings.Contains(text, "exec") {
		t.Fatalf("unexpected tool event text: %q", text)
	}

	if renderEvent(notify.Event{Type: notify.TypeToolUpdate, Payload: map[string]any{"id": "x", "status": "approved"}}) != "" {
		t.Fatal("intermediate tool updates should not notify")
	}
}
