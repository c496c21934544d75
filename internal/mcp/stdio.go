package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkovac/seeker/internal/config"
)

// stdioConnector launches the server as a child process and speaks
// Content-Length framed JSON-RPC over its stdin/stdout.
type stdioConnector struct{}

func (stdioConnector) Connect(ctx context.Context, serverName string, cfg config.MCPServerConfig) (Client, error) {
	command := strings.TrimSpace(cfg.Command)
	if command == "" {
		return nil, fmt.Errorf("stdio transport requires command")
	}

	cmd := exec.CommandContext(ctx, command, cfg.Args...)
	cmd.Env = mergeEnv(cfg.Env)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start stdio server %q: %w", serverName, err)
	}

	client := &stdioClient{
		serverName: serverName,
		cmd:        cmd,
		stdin:      stdin,
		reader:     bufio.NewReader(stdout),
		stderr:     newTailBuffer(4096),
		exitDone:   make(chan struct{}),
	}

	// Keep stderr drained so the child never blocks on it; the tail feeds
	// error messages when things go wrong.
	go io.Copy(client.stderr, stderr)
	go func() {
		client.markExited(cmd.Wait())
	}()

	if err := handshake(ctx, client); err != nil {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		client.waitForExit(500 * time.Millisecond)
		return nil, client.withDiagnostics(err)
	}
	return client, nil
}

func mergeEnv(extra map[string]string) []string {
	base := os.Environ()
	if len(extra) == 0 {
		return base
	}

	merged := make(map[string]string, len(base)+len(extra))
	for _, item := range base {
		key, value, _ := strings.Cut(item, "=")
		merged[key] = value
	}
	for key, value := range extra {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		merged[key] = value
	}

	out := make([]string, 0, len(merged))
	for key, value := range merged {
		out = append(out, key+"="+value)
	}
	return out
}

type stdioClient struct {
	serverName string
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	reader     *bufio.Reader
	stderr     *tailBuffer

	exitMu   sync.RWMutex
	exited   bool
	exitErr  error
	exitDone chan struct{}

	mu     sync.Mutex
	nextID int64
}

func (c *stdioClient) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	result, err := c.invoke(ctx, "tools/list", map[string]any{})
	if err != nil {
		return nil, err
	}
	return decodeToolDefinitions(result)
}

func (c *stdioClient) CallTool(ctx context.Context, toolName, argsJSON string) (any, error) {
	args, err := parseToolArgs(compactJSONOrRaw(argsJSON))
	if err != nil {
		return nil, err
	}
	result, err := c.invoke(ctx, "tools/call", map[string]any{
		"name":      strings.TrimSpace(toolName),
		"arguments": args,
	})
	if err != nil {
		return nil, err
	}
	return decodeCallResult(result)
}

func (c *stdioClient) invoke(ctx context.Context, method string, params any) (any, error) {
	if err := c.exitError(); err != nil {
		return nil, c.withDiagnostics(err)
	}

	id := atomic.AddInt64(&c.nextID, 1)
	payload, err := json.Marshal(map[string]any{
		"jsonrpc": jsonRPCVersion,
		"id":      id,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return nil, fmt.Errorf("encode json-rpc request: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.writeFramed(payload); err != nil {
		return nil, c.withDiagnostics(err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		response, err := c.readFramed()
		if err != nil {
			return nil, c.withDiagnostics(err)
		}
		result, matched, err := decodeRPCResponse(response, id)
		if err != nil {
			return nil, err
		}
		if !matched {
			continue
		}
		return result, nil
	}
}

func (c *stdioClient) notify(ctx context.Context, method string, params any) error {
	if err := c.exitError(); err != nil {
		return c.withDiagnostics(err)
	}

	payload, err := json.Marshal(map[string]any{
		"jsonrpc": jsonRPCVersion,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return fmt.Errorf("encode json-rpc notification: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.withDiagnostics(c.writeFramed(payload))
}

func (c *stdioClient) writeFramed(payload []byte) error {
	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(payload))
	if _, err := io.WriteString(c.stdin, header); err != nil {
		return fmt.Errorf("write mcp header: %w", err)
	}
	if _, err := c.stdin.Write(payload); err != nil {
		return fmt.Errorf("write mcp payload: %w", err)
	}
	return nil
}

func (c *stdioClient) readFramed() ([]byte, error) {
	contentLength, err := readContentLength(c.reader)
	if err != nil {
		return nil, err
	}
	body := make([]byte, contentLength)
	if _, err := io.ReadFull(c.reader, body); err != nil {
		return nil, fmt.Errorf("read mcp payload: %w", err)
	}
	return body, nil
}

func (c *stdioClient) markExited(err error) {
	c.exitMu.Lock()
	defer c.exitMu.Unlock()

	if c.exited {
		return
	}
	c.exited = true
	c.exitErr = err
	close(c.exitDone)
}

func (c *stdioClient) waitForExit(timeout time.Duration) {
	if timeout <= 0 {
		return
	}
	select {
	case <-c.exitDone:
	case <-time.After(timeout):
	}
}

func (c *stdioClient) exitError() error {
	c.exitMu.RLock()
	defer c.exitMu.RUnlock()

	if !c.exited {
		return nil
	}
	if c.exitErr == nil {
		return fmt.Errorf("mcp stdio server %q exited", c.serverName)
	}
	return fmt.Errorf("mcp stdio server %q exited: %w", c.serverName, c.exitErr)
}

// withDiagnostics folds child exit state and the stderr tail into err.
func (c *stdioClient) withDiagnostics(err error) error {
	if err == nil {
		return nil
	}
	tail := strings.TrimSpace(c.stderr.String())
	if exitErr := c.exitError(); exitErr != nil {
		if tail != "" {
			return fmt.Errorf("%w; process=%v; stderr=%s", err, exitErr, tail)
		}
		return fmt.Errorf("%w; process=%v", err, exitErr)
	}
	if tail != "" {
		return fmt.Errorf("%w; stderr=%s", err, tail)
	}
	return err
}

// tailBuffer keeps the last max bytes written, for stderr diagnostics.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer {
	if max <= 0 {
		max = 1024
	}
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf = append(b.buf, p...)
	if len(b.buf) > b.max {
		b.buf = append([]byte(nil), b.buf[len(b.buf)-b.max:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

func readContentLength(reader *bufio.Reader) (int, error) {
	contentLength := -1
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return 0, fmt.Errorf("read mcp header: %w", err)
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			break
		}
		name, value, ok := strings.Cut(trimmed, ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			continue
		}
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0, fmt.Errorf("invalid content-length header %q: %w", trimmed, err)
		}
		if parsed <= 0 {
			return 0, fmt.Errorf("invalid content-length value: %d", parsed)
		}
		contentLength = parsed
	}
	if contentLength <= 0 {
		return 0, fmt.Errorf("missing content-length header")
	}
	return contentLength, nil
}
