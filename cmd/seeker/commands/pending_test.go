package commands

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dkovac/seeker/internal/input"
)

func TestGatewayClient_SendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"requests": []input.Snapshot{}})
	}))
	defer srv.Close()

	client := &gatewayClient{base: srv.URL, token: "secret", http: srv.Client()}

	var out struct {
		Requests []input.Snapshot `json:"requests"`
	}
	if err := client.do(http.MethodGet, "/api/input/pending", nil, &out); err != nil {
		t.Fatalf("do: %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("expected bearer token header, got %q", gotAuth)
	}
}

func TestGatewayClient_SurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code":    "already_decided",
			"message": "tool is unknown or already decided",
		})
	}))
	defer srv.Close()

	client := &gatewayClient{base: srv.URL, http: srv.Client()}

	err := client.do(http.MethodPost, "/api/approvals/approve", map[string]string{"id": "x"}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "tool is unknown or already decided" {
		t.Fatalf("expected api message surfaced, got: %v", err)
	}
}

func TestGatewayClient_DecodesPendingInputs(t *testing.T) {
	created := time.Now().UTC().Truncate(time.Second)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"requests": []input.Snapshot{{ID: "in-1", Prompt: "which env?", CreatedAt: created}},
		})
	}))
	defer srv.Close()

	client := &gatewayClient{base: srv.URL, http: srv.Client()}

	var out struct {
		Requests []input.Snapshot `json:"requests"`
	}
	if err := client.do(http.MethodGet, "/api/input/pending", nil, &out); err != nil {
		t.Fatalf("do: %v", err)
	}
	if len(out.Requests) != 1 || out.Requests[0].Prompt != "which env?" {
		t.Fatalf("unexpected decode: %+v", out.Requests)
	}
}

func TestClip(t *testing.T) {
	if got := clip("short", 10); got != "short" {
		t.Fatalf("expected passthrough, got %q", got)
	}
	if got := clip("a longer string", 10); got != "a longe..." {
		t.Fatalf("expected truncation with ellipsis, got %q", got)
	}
}
