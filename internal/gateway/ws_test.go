package gateway

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialWS(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) *Frame {
	t.Helper()
	var frame Frame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return &frame
}

func TestWebSocketSnapshotOnConnect(t *testing.T) {
	deps := testDeps()
	inputID := deps.Inputs.Create("continue?")
	hub := NewHub(deps)
	go hub.Run()
	defer hub.Stop()

	srv := httptest.NewServer(NewHandler("", &mockChatProcessor{}, deps, hub))
	defer srv.Close()

	conn := dialWS(t, srv, "/ws")
	frame := readFrame(t, conn)
	if frame.Type != FrameSnapshot {
		t.Fatalf("expected snapshot frame, got %s", frame.Type)
	}
	inputs, ok := frame.Payload["inputs"].([]any)
	if !ok || len(inputs) != 1 {
		t.Fatalf("expected one pending input in snapshot, got %v", frame.Payload["inputs"])
	}
	first := inputs[0].(map[string]any)
	if first["id"] != inputID {
		t.Fatalf("expected id=%s, got %v", inputID, first["id"])
	}
}

func TestWebSocketRespondFrame(t *testing.T) {
	deps := testDeps()
	inputID := deps.Inputs.Create("pick a color")
	hub := NewHub(deps)
	go hub.Run()
	defer hub.Stop()

	srv := httptest.NewServer(NewHandler("", &mockChatProcessor{}, deps, hub))
	defer srv.Close()

	conn := dialWS(t, srv, "/ws")
	readFrame(t, conn) // snapshot

	if err := conn.WriteJSON(&Frame{Type: "respond", ID: inputID, Answer: "blue"}); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	ack := readFrame(t, conn)
	if ack.Type != FrameAck || ack.ID != inputID {
		t.Fatalf("expected ack for %s, got %+v", inputID, ack)
	}
	if len(deps.Inputs.Pending()) != 0 {
		t.Fatal("expected input answered after respond frame")
	}

	// Answering again loses the race and comes back as an error frame.
	if err := conn.WriteJSON(&Frame{Type: "respond", ID: inputID, Answer: "red"}); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	errFrame := readFrame(t, conn)
	if errFrame.Type != FrameError {
		t.Fatalf("expected error frame, got %+v", errFrame)
	}
}

func TestWebSocketApproveFrame(t *testing.T) {
	deps := testDeps()
	toolID := deps.Approvals.Propose("exec", map[string]any{"command": "ls"})
	hub := NewHub(deps)
	go hub.Run()
	defer hub.Stop()

	srv := httptest.NewServer(NewHandler("", &mockChatProcessor{}, deps, hub))
	defer srv.Close()

	conn := dialWS(t, srv, "/ws")
	readFrame(t, conn) // snapshot

	if err := conn.WriteJSON(&Frame{Type: "approve", ID: toolID, Note: "fine"}); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	ack := readFrame(t, conn)
	if ack.Type != FrameAck || ack.ID != toolID {
		t.Fatalf("expected ack for %s, got %+v", toolID, ack)
	}
	if len(deps.Approvals.Pending()) != 0 {
		t.Fatal("expected tool decided after approve frame")
	}
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	deps := testDeps()
	hub := NewHub(deps)
	go hub.Run()
	defer hub.Stop()

	srv := httptest.NewServer(NewHandler("secret-token", &mockChatProcessor{}, deps, hub))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial to fail without token")
	}
	if resp == nil || resp.StatusCode != 401 {
		t.Fatalf("expected 401 handshake response, got %+v", resp)
	}

	conn := dialWS(t, srv, "/ws?token=secret-token")
	frame := readFrame(t, conn)
	if frame.Type != FrameSnapshot {
		t.Fatalf("expected snapshot after token auth, got %s", frame.Type)
	}
}
