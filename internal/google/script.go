package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/script/v1"

	"attendance/internal/remote"
)

// DefaultFunction is the script function that receives the request object
// and returns the {success, data, error} envelope.
const DefaultFunction = "handleRequest"

var macroURL = regexp.MustCompile(`/macros/s/([^/]+)`)

// ScriptID extracts the id from a web-app URL or accepts a bare id.
func ScriptID(endpoint string) (string, error) {
	endpoint = strings.TrimSpace(endpoint)
	if m := macroURL.FindStringSubmatch(endpoint); m != nil {
		return m[1], nil
	}
	if endpoint != "" && !strings.ContainsAny(endpoint, "/:?") {
		return endpoint, nil
	}
	return "", fmt.Errorf("cannot find a script id in %q", endpoint)
}

// ScriptTransport carries requests through the Apps Script Execution API
// instead of the public web-app URL, so calls run as the signed-in user.
type ScriptTransport struct {
	service  *script.Service
	function string
	logger   *slog.Logger
}

var _ remote.Transport = (*ScriptTransport)(nil)

// NewScriptTransport creates the transport. Pass option.WithHTTPClient with
// an authorized client from HTTPClient.
func NewScriptTransport(ctx context.Context, logger *slog.Logger, function string, opts ...option.ClientOption) (*ScriptTransport, error) {
	service, err := script.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create script service: %w", err)
	}
	if function == "" {
		function = DefaultFunction
	}
	return &ScriptTransport{service: service, function: function, logger: logger}, nil
}

// Post runs the script function with the decoded request and returns the
// envelope it produced. A script that throws yields a rejected envelope.
func (t *ScriptTransport) Post(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	scriptID, err := ScriptID(endpoint)
	if err != nil {
		return nil, err
	}

	var req map[string]any
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("failed to decode request body: %w", err)
	}

	op, err := t.service.Scripts.Run(scriptID, &script.ExecutionRequest{
		Function:   t.function,
		Parameters: []interface{}{req},
	}).Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			return nil, &remote.TransportError{Status: gerr.Code}
		}
		return nil, err
	}

	if op.Error != nil {
		t.logger.Debug("Script execution failed", "scriptID", scriptID, "function", t.function, "code", op.Error.Code, "message", op.Error.Message)
		return json.Marshal(map[string]any{"success": false, "error": op.Error.Message})
	}

	var resp struct {
		Result json.RawMessage `json:"result"`
	}
	if len(op.Response) > 0 {
		if err := json.Unmarshal([]byte(op.Response), &resp); err != nil {
			return nil, fmt.Errorf("failed to decode script response: %w", err)
		}
	}
	if len(resp.Result) == 0 {
		return nil, fmt.Errorf("script %s returned no result", t.function)
	}
	return resp.Result, nil
}
