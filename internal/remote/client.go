package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	DefaultTimeout = 30 * time.Second
	maxBackoff     = 30 * time.Second
)

// Options are the per-call settings of the client.
type Options struct {
	Endpoint      string
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// Settings supplies Options at call time, so the endpoint can be repointed
// without rebuilding the client.
type Settings interface {
	RemoteOptions() Options
}

// StaticSettings is a fixed Settings value.
type StaticSettings Options

// RemoteOptions returns the fixed options.
func (s StaticSettings) RemoteOptions() Options { return Options(s) }

// Sender is the single-endpoint request contract used by the rest of the
// module. *Client implements it; tests substitute fakes.
type Sender interface {
	Send(ctx context.Context, action string, payload map[string]any) (json.RawMessage, error)
}

// Ensure Client implements Sender at compile time.
var _ Sender = (*Client)(nil)

// Client serializes actions to JSON and posts them over a Transport.
type Client struct {
	transport Transport
	settings  Settings
	logger    *slog.Logger
}

// NewClient creates a Client. settings is consulted on every call.
func NewClient(logger *slog.Logger, transport Transport, settings Settings) *Client {
	return &Client{transport: transport, settings: settings, logger: logger}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

// Send posts {action, ...payload} and returns the data object of a
// successful answer. Failures are ErrTimeout, *TransportError,
// *RejectedError or wrapped decode/transport errors.
func (c *Client) Send(ctx context.Context, action string, payload map[string]any) (json.RawMessage, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	opts := c.settings.RemoteOptions()
	if strings.TrimSpace(opts.Endpoint) == "" {
		return nil, fmt.Errorf("remote endpoint is not configured")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	body, err := encodeRequest(action, payload)
	if err != nil {
		return nil, err
	}

	attempts := 1
	if readOnlyActions[action] && opts.RetryAttempts > 1 {
		attempts = opts.RetryAttempts
	}

	for attempt := 0; ; attempt++ {
		c.logger.Debug("Sending remote request", "action", action, "attempt", attempt+1)
		data, err := c.once(ctx, opts, action, body)
		if err == nil {
			return data, nil
		}
		if attempt+1 >= attempts || !retryable(err) {
			return nil, err
		}
		wait := calculateBackoff(attempt, opts.RetryDelay)
		c.logger.Warn("Remote request failed, retrying", "action", action, "error", err, "wait", wait)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) once(ctx context.Context, opts Options, action string, body []byte) (json.RawMessage, error) {
	reqCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	raw, err := c.transport.Post(reqCtx, opts.Endpoint, body)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%s after %s: %w", action, opts.Timeout, ErrTimeout)
		}
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = env.Message
		}
		return nil, &RejectedError{Action: action, Message: msg}
	}
	return env.Data, nil
}

func encodeRequest(action string, payload map[string]any) ([]byte, error) {
	req := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		req[k] = v
	}
	req["action"] = action
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", action, err)
	}
	return body, nil
}

// calculateBackoff doubles base per failed attempt, capped at maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	if failures <= 0 {
		return base
	}
	d := base
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
