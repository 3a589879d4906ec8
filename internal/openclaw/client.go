package openclaw

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/sync/singleflight"
)

// Client wraps the openclaw CLI surface consumed by the dashboard:
//
//	gateway status|start|stop|restart|logs
//	agents list|add
//	sessions [--json] [--active N]
//	agent --message ... [--agent ID] [--session-id ID] [--thinking LEVEL] --json
type Client struct {
	exec   Executor
	logger *slog.Logger
	probes singleflight.Group
}

// NewClient creates a Client over exec.
func NewClient(exec Executor, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{exec: exec, logger: logger}
}

// Executor returns the underlying executor.
func (c *Client) Executor() Executor { return c.exec }

func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	res := c.exec.Run(ctx, args...)
	if !res.OK() {
		return "", &CommandError{Args: args, Message: res.Err}
	}
	return res.Stdout, nil
}

// GatewayStatus probes `gateway status`. Concurrent callers (heartbeat and
// page polls) share one subprocess. The shared call ignores the cancellation
// of whichever caller started it and is bounded by the runner timeout; a
// cancelled caller stops waiting and gets ctx.Err().
func (c *Client) GatewayStatus(ctx context.Context) (*GatewayStatus, error) {
	shared := context.WithoutCancel(ctx)
	ch := c.probes.DoChan("gateway-status", func() (interface{}, error) {
		out, err := c.run(shared, "gateway", "status")
		if err != nil {
			return nil, err
		}
		return ParseGatewayStatus(out)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*GatewayStatus), nil
	}
}

// GatewayStart launches the gateway detached; it keeps running after the
// dashboard exits.
func (c *Client) GatewayStart(_ context.Context) error {
	if err := c.exec.Detach("gateway", "start"); err != nil {
		return fmt.Errorf("gateway start: %w", err)
	}
	return nil
}

// GatewayStop stops the gateway.
func (c *Client) GatewayStop(ctx context.Context) error {
	_, err := c.run(ctx, "gateway", "stop")
	return err
}

// GatewayRestart restarts the gateway.
func (c *Client) GatewayRestart(ctx context.Context) error {
	_, err := c.run(ctx, "gateway", "restart")
	return err
}

// GatewayLogs returns recent gateway log output, trimmed to the last limit
// lines when limit > 0.
func (c *Client) GatewayLogs(ctx context.Context, limit int) (string, error) {
	out, err := c.run(ctx, "gateway", "logs")
	if err != nil {
		return "", err
	}
	return tailLines(out, limit), nil
}

// ListAgents lists configured agents. The JSON form is tried first; the text
// listing is the fallback for CLIs that lack --json.
func (c *Client) ListAgents(ctx context.Context) ([]Agent, error) {
	out, jsonErr := c.run(ctx, "agents", "list", "--json")
	if jsonErr == nil {
		agents, perr := ParseAgentsJSON(out)
		if perr == nil {
			return agents, nil
		}
		jsonErr = perr
	}
	c.logger.Debug("agents list --json failed, falling back to text", "error", jsonErr)

	out, textErr := c.run(ctx, "agents", "list")
	if textErr != nil {
		return nil, errors.Join(jsonErr, textErr)
	}
	return ParseAgentListing(out), nil
}

// AddAgent runs `agents add`.
func (c *Client) AddAgent(ctx context.Context, opts AddAgentOptions) error {
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return errors.New("agent name is required")
	}
	args := []string{"agents", "add", name}
	if opts.Workspace != "" {
		args = append(args, "--workspace", opts.Workspace)
	}
	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}
	args = append(args, "--non-interactive")
	_, err := c.run(ctx, args...)
	return err
}

// ListSessions runs `sessions --json`, limited to sessions active within the
// last active minutes when active > 0.
func (c *Client) ListSessions(ctx context.Context, active int) ([]Session, error) {
	args := []string{"sessions", "--json"}
	if active > 0 {
		args = append(args, "--active", strconv.Itoa(active))
	}
	out, err := c.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	return ParseSessionsJSON(out)
}

// SendMessage runs one agent turn and returns its reply.
func (c *Client) SendMessage(ctx context.Context, req MessageRequest) (*MessageReply, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, errors.New("message is required")
	}
	if !ValidThinkingLevel(req.Thinking) {
		return nil, fmt.Errorf("invalid thinking level %q", req.Thinking)
	}

	args := []string{"agent", "--message", req.Message}
	if req.AgentID != "" {
		args = append(args, "--agent", req.AgentID)
	}
	if req.SessionID != "" {
		args = append(args, "--session-id", req.SessionID)
	}
	if req.Thinking != "" {
		args = append(args, "--thinking", req.Thinking)
	}
	args = append(args, "--json")

	out, err := c.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	return ParseMessageReply(out)
}

func tailLines(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= limit {
		return s
	}
	return strings.Join(lines[len(lines)-limit:], "\n") + "\n"
}
