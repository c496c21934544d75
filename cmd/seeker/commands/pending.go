package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/dkovac/seeker/internal/approval"
	"github.com/dkovac/seeker/internal/config"
	"github.com/dkovac/seeker/internal/input"
)

func NewPendingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Manage pending approvals and input requests",
	}

	cmd.AddCommand(
		newPendingListCmd(),
		newPendingApproveCmd(),
		newPendingDenyCmd(),
		newPendingAnswerCmd(),
	)

	return cmd
}

func newPendingListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pending approvals and input requests",
		RunE:  runPendingList,
	}
}

func newPendingApproveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a queued tool execution",
		Args:  cobra.ExactArgs(1),
		RunE:  runPendingApprove,
	}
	cmd.Flags().String("note", "", "Note passed to the agent with the result")
	return cmd
}

func newPendingDenyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deny <id>",
		Short: "Deny a queued tool execution",
		Args:  cobra.ExactArgs(1),
		RunE:  runPendingDeny,
	}
	cmd.Flags().String("reason", "", "Reason passed to the agent")
	return cmd
}

func newPendingAnswerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "answer <id> <text>",
		Short: "Answer a pending input request",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runPendingAnswer,
	}
}

// gatewayClient talks to a running seeker server over its HTTP API. The
// pending stores live in the server process, so the CLI always goes through
// the gateway rather than opening the workspace directly.
type gatewayClient struct {
	base  string
	token string
	http  *http.Client
}

func newGatewayClient() (*gatewayClient, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	host := cfg.Gateway.Host
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return &gatewayClient{
		base:  fmt.Sprintf("http://%s:%d", host, cfg.Gateway.Port),
		token: cfg.Gateway.Token,
		http:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (c *gatewayClient) do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("is the server running? %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("%s", apiErr.Message)
		}
		return fmt.Errorf("gateway returned %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func runPendingList(cmd *cobra.Command, args []string) error {
	client, err := newGatewayClient()
	if err != nil {
		return err
	}

	var inputsResp struct {
		Requests []input.Snapshot `json:"requests"`
	}
	if err := client.do(http.MethodGet, "/api/input/pending", nil, &inputsResp); err != nil {
		return err
	}
	var toolsResp struct {
		Tools []approval.Tool `json:"tools"`
	}
	if err := client.do(http.MethodGet, "/api/approvals/pending", nil, &toolsResp); err != nil {
		return err
	}

	if len(inputsResp.Requests) == 0 && len(toolsResp.Tools) == 0 {
		fmt.Println("Nothing pending.")
		return nil
	}

	// Styles matching status output
	var (
		headerStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#FAFAFA")).
				Background(lipgloss.Color("#8E4EC6")). // Purple
				Padding(0, 1).
				MarginBottom(1)

		wID      = 12
		wWhen    = 10
		wDetail  = 50
		wPending = 10

		colHeaderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#8E4EC6")).
				Bold(true).
				MarginRight(1)

		idStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(wID).
			MarginRight(1)

		whenStyle = lipgloss.NewStyle().
				Width(wWhen).
				MarginRight(1)

		detailStyle = lipgloss.NewStyle().
				Width(wDetail).
				MarginRight(1)

		kindStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#2E8B57")). // SeaGreen
				Width(wPending).
				MarginRight(1)
	)

	renderHeader := func(title string) {
		fmt.Println(headerStyle.Render(title))
		headers := lipgloss.JoinHorizontal(lipgloss.Top,
			colHeaderStyle.Width(wID).Render("ID"),
			colHeaderStyle.Width(wWhen).Render("SINCE"),
			colHeaderStyle.Width(wDetail).Render("DETAIL"),
			colHeaderStyle.Width(wPending).Render("RESPOND"),
		)
		fmt.Printf("  %s\n", headers)

		sepStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginRight(1)
		separator := lipgloss.JoinHorizontal(lipgloss.Top,
			sepStyle.Render(strings.Repeat("─", wID)),
			sepStyle.Render(strings.Repeat("─", wWhen)),
			sepStyle.Render(strings.Repeat("─", wDetail)),
			sepStyle.Render(strings.Repeat("─", wPending)),
		)
		fmt.Printf("  %s\n", separator)
	}

	if len(toolsResp.Tools) > 0 {
		renderHeader("Pending Approvals")
		for _, tl := range toolsResp.Tools {
			detail := tl.ToolName
			if raw, err := json.Marshal(tl.Args); err == nil {
				detail = tl.ToolName + " " + string(raw)
			}
			row := lipgloss.JoinHorizontal(lipgloss.Top,
				idStyle.Render(clip(tl.ID, wID)),
				whenStyle.Render(tl.CreatedAt.Format(time.TimeOnly)),
				detailStyle.Render(clip(detail, wDetail)),
				kindStyle.Render("approve"),
			)
			fmt.Printf("  %s\n", row)
		}
		fmt.Println()
	}

	if len(inputsResp.Requests) > 0 {
		renderHeader("Pending Input Requests")
		for _, req := range inputsResp.Requests {
			row := lipgloss.JoinHorizontal(lipgloss.Top,
				idStyle.Render(clip(req.ID, wID)),
				whenStyle.Render(req.CreatedAt.Format(time.TimeOnly)),
				detailStyle.Render(clip(req.Prompt, wDetail)),
				kindStyle.Render("answer"),
			)
			fmt.Printf("  %s\n", row)
		}
		fmt.Println()
	}

	return nil
}

func runPendingApprove(cmd *cobra.Command, args []string) error {
	client, err := newGatewayClient()
	if err != nil {
		return err
	}
	note, _ := cmd.Flags().GetString("note")

	body := map[string]string{"id": args[0], "user_response": note, "decided_by": "cli"}
	if err := client.do(http.MethodPost, "/api/approvals/approve", body, nil); err != nil {
		return err
	}
	fmt.Printf("Tool %s approved.\n", args[0])
	return nil
}

func runPendingDeny(cmd *cobra.Command, args []string) error {
	client, err := newGatewayClient()
	if err != nil {
		return err
	}
	reason, _ := cmd.Flags().GetString("reason")

	body := map[string]string{"id": args[0], "reason": reason, "decided_by": "cli"}
	if err := client.do(http.MethodPost, "/api/approvals/deny", body, nil); err != nil {
		return err
	}
	fmt.Printf("Tool %s denied.\n", args[0])
	return nil
}

func runPendingAnswer(cmd *cobra.Command, args []string) error {
	client, err := newGatewayClient()
	if err != nil {
		return err
	}

	body := map[string]string{
		"id":     args[0],
		"answer": strings.Join(args[1:], " "),
		"source": "cli",
	}
	if err := client.do(http.MethodPost, "/api/input/respond", body, nil); err != nil {
		return err
	}
	fmt.Printf("Answer recorded for %s.\n", args[0])
	return nil
}

func clip(s string, width int) string {
	if len(s) <= width {
		return s
	}
	if width <= 3 {
		return s[:width]
	}
	return s[:width-3] + "..."
}
