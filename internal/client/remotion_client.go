package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/quizvideo/api/internal/config"
	"github.com/quizvideo/api/internal/render"
)

// RemotionClient implements render.Engine against the Remotion render
// sidecar, a Node service wrapping @remotion/renderer and @remotion/bundler.
type RemotionClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewRemotionClient creates a new sidecar client. The underlying HTTP client
// carries no timeout: renders run until done or until the request context is
// cancelled.
func NewRemotionClient(cfg *config.RemotionConfig) *RemotionClient {
	return &RemotionClient{
		httpClient: &http.Client{},
		baseURL:    cfg.EngineURL,
	}
}

func (c *RemotionClient) IsConfigured() bool {
	return c.baseURL != ""
}

// EnsureBrowser asks the sidecar to warm up its headless browser.
func (c *RemotionClient) EnsureBrowser(ctx context.Context) error {
	return c.post(ctx, "/browser/ensure", struct{}{}, nil)
}

// Bundle builds the Remotion project on the sidecar and returns the serve
// URL of the resulting bundle.
func (c *RemotionClient) Bundle(ctx context.Context) (string, error) {
	var result struct {
		ServeURL string `json:"serveUrl"`
	}
	if err := c.post(ctx, "/bundle", struct{}{}, &result); err != nil {
		return "", err
	}
	if result.ServeURL == "" {
		return "", fmt.Errorf("bundle returned no serve url")
	}
	return result.ServeURL, nil
}

// SelectComposition resolves composition metadata for the given input props.
func (c *RemotionClient) SelectComposition(ctx context.Context, serveURL, compositionID string, inputProps interface{}) (*render.Composition, error) {
	req := map[string]interface{}{
		"serveUrl":      serveURL,
		"compositionId": compositionID,
		"inputProps":    inputProps,
	}
	var composition render.Composition
	if err := c.post(ctx, "/compositions/select", req, &composition); err != nil {
		return nil, err
	}
	return &composition, nil
}

// renderEvent is one line of the sidecar's newline-delimited render stream.
type renderEvent struct {
	Type     string  `json:"type"`
	Progress float64 `json:"progress,omitempty"`
	Video    string  `json:"video,omitempty"`
	Message  string  `json:"message,omitempty"`
}

// RenderMedia streams the render from the sidecar, relaying progress events
// to p.OnProgress, and returns the decoded video from the final event.
// Cancelling ctx aborts the request, which makes the sidecar kill the render.
func (c *RemotionClient) RenderMedia(ctx context.Context, p render.RenderParams) ([]byte, error) {
	body, err := json.Marshal(map[string]interface{}{
		"serveUrl":    p.ServeURL,
		"composition": p.Composition,
		"codec":       p.Codec,
		"inputProps":  p.InputProps,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal render request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/render", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("render engine returned status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	scanner := bufio.NewScanner(resp.Body)
	// The final event carries the whole base64-encoded video.
	scanner.Buffer(make([]byte, 0, 64*1024), 512*1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var event renderEvent
		if err := json.Unmarshal(line, &event); err != nil {
			return nil, fmt.Errorf("invalid render event: %w", err)
		}
		switch event.Type {
		case "progress":
			if p.OnProgress != nil {
				p.OnProgress(event.Progress)
			}
		case "done":
			artifact, err := base64.StdEncoding.DecodeString(event.Video)
			if err != nil {
				return nil, fmt.Errorf("failed to decode render output: %w", err)
			}
			return artifact, nil
		case "error":
			return nil, fmt.Errorf("render engine: %s", event.Message)
		}
	}
	if err := scanner.Err(); err != nil {
		// Includes the context error when the render was cancelled.
		return nil, err
	}
	return nil, fmt.Errorf("render stream ended without a result")
}

func (c *RemotionClient) post(ctx context.Context, path string, payload, result interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("render engine %s returned status %d: %s", path, resp.StatusCode, bytes.TrimSpace(msg))
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
