package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dkovac/seeker/internal/version"
)

const (
	jsonRPCVersion     = "2.0"
	mcpProtocolVersion = "2024-11-05"
)

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rpcTransport sends JSON-RPC requests and notifications over one transport.
type rpcTransport interface {
	invoke(ctx context.Context, method string, params any) (any, error)
	notify(ctx context.Context, method string, params any) error
}

// handshake runs the MCP initialize exchange on a freshly dialed transport.
func handshake(ctx context.Context, t rpcTransport) error {
	params := map[string]any{
		"protocolVersion": mcpProtocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "seeker",
			"version": version.Version,
		},
	}
	if _, err := t.invoke(ctx, "initialize", params); err != nil {
		return fmt.Errorf("initialize mcp session: %w", err)
	}
	if err := t.notify(ctx, "notifications/initialized", map[string]any{}); err != nil {
		return fmt.Errorf("send initialized notification: %w", err)
	}
	return nil
}

// decodeToolDefinitions extracts tool definitions from a tools/list result.
func decodeToolDefinitions(result any) ([]ToolDefinition, error) {
	if result == nil {
		return nil, nil
	}

	var listed any = result
	if obj, ok := result.(map[string]any); ok {
		listed = obj["tools"]
	}
	items, ok := listed.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected tools/list result shape")
	}

	defs := make([]ToolDefinition, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name := strings.TrimSpace(asString(obj["name"]))
		if name == "" {
			continue
		}
		defs = append(defs, ToolDefinition{
			Name:        name,
			Description: strings.TrimSpace(asString(obj["description"])),
		})
	}
	return defs, nil
}

// parseToolArgs turns the model's raw argument JSON into the value sent as
// the MCP "arguments" field. An empty string means no arguments.
func parseToolArgs(argsJSON string) (any, error) {
	trimmed := strings.TrimSpace(argsJSON)
	if trimmed == "" {
		return map[string]any{}, nil
	}
	var parsed any
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return nil, fmt.Errorf("invalid tool args json: %w", err)
	}
	if parsed == nil {
		return map[string]any{}, nil
	}
	return parsed, nil
}

// decodeCallResult unpacks a tools/call result: text content blocks become a
// joined string, isError becomes a Go error, structuredContent passes through.
func decodeCallResult(result any) (any, error) {
	obj, ok := result.(map[string]any)
	if !ok {
		return result, nil
	}

	isErr, _ := obj["isError"].(bool)
	if text := textContent(obj["content"]); text != "" {
		if isErr {
			return nil, errors.New(text)
		}
		return text, nil
	}
	if isErr {
		return nil, fmt.Errorf("mcp tool call failed")
	}
	if structured, ok := obj["structuredContent"]; ok && structured != nil {
		return structured, nil
	}
	return result, nil
}

func textContent(v any) string {
	items, ok := v.([]any)
	if !ok {
		return ""
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(asString(obj["type"])), "text") {
			continue
		}
		if text := strings.TrimSpace(asString(obj["text"])); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func asString(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	default:
		return fmt.Sprint(v)
	}
}

// decodeRPCResponse parses one JSON-RPC envelope. matched is false for
// notifications and responses to other ids, which the caller skips.
func decodeRPCResponse(payload []byte, expectedID int64) (result any, matched bool, err error) {
	var envelope map[string]any
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, false, fmt.Errorf("decode json-rpc response: %w", err)
	}
	if _, hasID := envelope["id"]; !hasID {
		return nil, false, nil
	}
	if rpcIDKey(envelope["id"]) != rpcIDKey(expectedID) {
		return nil, false, nil
	}

	if errValue, ok := envelope["error"]; ok && errValue != nil {
		parsed := rpcError{}
		if raw, err := json.Marshal(errValue); err == nil {
			_ = json.Unmarshal(raw, &parsed)
		}
		msg := strings.TrimSpace(parsed.Message)
		if msg == "" {
			msg = strings.TrimSpace(fmt.Sprint(errValue))
		}
		if msg == "" {
			msg = "json-rpc request failed"
		}
		return nil, true, errors.New(msg)
	}
	return envelope["result"], true, nil
}

// rpcIDKey normalizes an id for comparison; JSON decoding turns our int64
// ids into float64.
func rpcIDKey(id any) string {
	switch value := id.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(value)
	case float64:
		return fmt.Sprintf("%.0f", value)
	case int:
		return fmt.Sprintf("%d", value)
	case int64:
		return fmt.Sprintf("%d", value)
	default:
		return strings.TrimSpace(fmt.Sprint(value))
	}
}

func compactJSONOrRaw(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "{}"
	}
	var out bytes.Buffer
	if err := json.Compact(&out, []byte(trimmed)); err != nil {
		return trimmed
	}
	return out.String()
}
