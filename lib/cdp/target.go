package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// TargetInfo mirrors Target.TargetInfo.
type TargetInfo struct {
	TargetID string `json:"targetId"`
	Type     string `json:"type"`
	URL      string `json:"url"`
	Title    string `json:"title"`
	Attached bool   `json:"attached"`
}

// Targets lists all targets known to the browser.
func (c *Client) Targets(ctx context.Context) ([]TargetInfo, error) {
	result, err := c.Call(ctx, "", "Target.getTargets", nil)
	if err != nil {
		return nil, fmt.Errorf("getTargets: %w", err)
	}
	var resp struct {
		TargetInfos []TargetInfo `json:"targetInfos"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal targets: %w", err)
	}
	return resp.TargetInfos, nil
}

// Attach opens a flattened session to a target and returns its session id.
func (c *Client) Attach(ctx context.Context, targetID string) (string, error) {
	result, err := c.Call(ctx, "", "Target.attachToTarget", map[string]any{
		"targetId": targetID,
		"flatten":  true,
	})
	if err != nil {
		return "", fmt.Errorf("attachToTarget: %w", err)
	}
	var resp struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return "", fmt.Errorf("unmarshal attach: %w", err)
	}
	return resp.SessionID, nil
}

func (c *Client) Detach(ctx context.Context, sessionID string) error {
	_, err := c.Call(ctx, "", "Target.detachFromTarget", map[string]any{"sessionId": sessionID})
	return err
}

// Evaluate runs expression in the session's page and decodes the returned
// value into out, which may be nil. Promises are awaited.
func (c *Client) Evaluate(ctx context.Context, sessionID, expression string, out any) error {
	result, err := c.Call(ctx, sessionID, "Runtime.evaluate", map[string]any{
		"expression":    expression,
		"awaitPromise":  true,
		"returnByValue": true,
	})
	if err != nil {
		return err
	}

	var evalResult struct {
		Result struct {
			Type        string          `json:"type"`
			Value       json.RawMessage `json:"value"`
			Description string          `json:"description"`
			Subtype     string          `json:"subtype"`
		} `json:"result"`
		ExceptionDetails *struct {
			Text      string `json:"text"`
			Exception struct {
				Description string `json:"description"`
			} `json:"exception"`
		} `json:"exceptionDetails"`
	}
	if err := json.Unmarshal(result, &evalResult); err != nil {
		return fmt.Errorf("unmarshal eval result: %w", err)
	}
	if evalResult.ExceptionDetails != nil {
		errMsg := evalResult.ExceptionDetails.Text
		if evalResult.ExceptionDetails.Exception.Description != "" {
			errMsg = evalResult.ExceptionDetails.Exception.Description
		}
		return fmt.Errorf("JS exception: %s", errMsg)
	}
	if evalResult.Result.Subtype == "error" {
		return fmt.Errorf("JS error: %s", evalResult.Result.Description)
	}
	if out == nil || len(evalResult.Result.Value) == 0 {
		return nil
	}
	if err := json.Unmarshal(evalResult.Result.Value, out); err != nil {
		return fmt.Errorf("decode eval value: %w", err)
	}
	return nil
}

// ResolveBrowserURL turns a DevTools endpoint into a browser WebSocket URL.
// ws:// and wss:// URLs are returned as is; http(s) endpoints are asked for
// their webSocketDebuggerUrl.
func ResolveBrowserURL(ctx context.Context, endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid CDP endpoint: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
		return endpoint, nil
	case "http", "https":
	default:
		return "", fmt.Errorf("unsupported CDP endpoint scheme %q", u.Scheme)
	}

	versionURL := strings.TrimSuffix(endpoint, "/") + "/json/version"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, versionURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("query %s: %w", versionURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("query %s: status %d: %s", versionURL, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var version struct {
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&version); err != nil {
		return "", fmt.Errorf("decode %s: %w", versionURL, err)
	}
	if version.WebSocketDebuggerURL == "" {
		return "", fmt.Errorf("%s returned no webSocketDebuggerUrl", versionURL)
	}
	return version.WebSocketDebuggerURL, nil
}
