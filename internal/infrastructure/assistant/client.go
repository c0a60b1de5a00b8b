// Package assistant implements the OpenAI Assistants v2 client used as the
// hosted assistant service. Threads and runs are opaque server-side objects;
// this client only creates threads, submits runs, and relays the run's
// server-sent event stream.
package assistant

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/acqadvantage/assistant-api/internal/core/ports"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	betaHeader     = "assistants=v2"
)

// Config captures the settings for the assistant client.
type Config struct {
	BaseURL     string
	APIKey      string
	AssistantID string
	// Timeout bounds each non-streaming HTTP call.
	Timeout time.Duration
}

// Client talks to the assistant service over plain HTTP. Streaming responses
// deliberately use a client without a global timeout; the run-level deadline
// comes from the caller's context.
type Client struct {
	cfg       Config
	http      *http.Client
	streaming *http.Client
	logger    zerolog.Logger
}

func New(cfg Config, logger zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:       cfg,
		http:      &http.Client{Timeout: cfg.Timeout},
		streaming: &http.Client{},
		logger:    logger,
	}
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

type threadResponse struct {
	ID string `json:"id"`
}

type messageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type runRequest struct {
	AssistantID string `json:"assistant_id"`
	Stream      bool   `json:"stream"`
}

// CreateThread implements ports.AssistantClient.
func (c *Client) CreateThread(ctx context.Context) (string, error) {
	var thread threadResponse
	if err := c.post(ctx, "/threads", struct{}{}, &thread); err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	if thread.ID == "" {
		return "", fmt.Errorf("create thread: empty id in response")
	}
	return thread.ID, nil
}

// Ping implements ports.AssistantClient with the cheapest authenticated call
// the service offers.
func (c *Client) Ping(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/models?limit=1", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("assistant ping: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("assistant ping: %s", readAPIError(resp))
	}
	return nil
}

// StreamRun implements ports.AssistantClient: appends the prompt to the
// thread, starts a streamed run, and forwards the provider's SSE events. The
// returned channel closes after a terminal event or when ctx is done.
func (c *Client) StreamRun(ctx context.Context, threadID, prompt string) (<-chan ports.RunEvent, error) {
	msg := messageRequest{Role: "user", Content: prompt}
	if err := c.post(ctx, "/threads/"+threadID+"/messages", msg, nil); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	body, err := json.Marshal(runRequest{AssistantID: c.cfg.AssistantID, Stream: true})
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/threads/"+threadID+"/runs", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streaming.Do(req)
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, fmt.Errorf("start run: %s", readAPIError(resp))
	}

	events := make(chan ports.RunEvent)
	go c.readStream(ctx, resp.Body, events)
	return events, nil
}

// sseFrame mirrors the fields of the stream payloads this client consumes.
type sseFrame struct {
	ID    string `json:"id"`
	Delta struct {
		Content []struct {
			Type string `json:"type"`
			Text struct {
				Value string `json:"value"`
			} `json:"text"`
		} `json:"content"`
	} `json:"delta"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error"`
}

// readStream parses the SSE body line by line. Frames arrive as an
// "event: <name>" line followed by a "data: <json>" line; a blank line ends
// the frame.
func (c *Client) readStream(ctx context.Context, body io.ReadCloser, events chan<- ports.RunEvent) {
	defer close(events)
	defer body.Close()

	emit := func(ev ports.RunEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	var eventName, runID string
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))

		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}

			var frame sseFrame
			if err := json.Unmarshal([]byte(data), &frame); err != nil {
				c.logger.Warn().Err(err).Str("event", eventName).Msg("undecodable stream frame skipped")
				continue
			}
			if strings.HasPrefix(eventName, "thread.run.") && frame.ID != "" {
				runID = frame.ID
			}

			switch eventName {
			case "thread.message.delta":
				for _, part := range frame.Delta.Content {
					if part.Type != "text" || part.Text.Value == "" {
						continue
					}
					if !emit(ports.RunEvent{Type: ports.RunDelta, Text: part.Text.Value, RunID: runID}) {
						return
					}
				}

			case "thread.run.completed":
				emit(ports.RunEvent{Type: ports.RunCompleted, RunID: runID})
				return

			case "thread.run.failed", "thread.run.expired", "thread.run.cancelled":
				var reason error
				if frame.LastError != nil {
					reason = fmt.Errorf("%s: %s", frame.LastError.Code, frame.LastError.Message)
				}
				emit(ports.RunEvent{Type: ports.RunFailed, RunID: runID, Err: reason})
				return
			}
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		emit(ports.RunEvent{Type: ports.RunFailed, Err: fmt.Errorf("stream read: %w", err)})
	}
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s: %s", path, readAPIError(resp))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("OpenAI-Beta", betaHeader)
	return req, nil
}

// readAPIError surfaces the provider's error message without assuming the
// body is well-formed.
func readAPIError(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr apiError
	if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
		return fmt.Sprintf("status %d: %s", resp.StatusCode, apiErr.Error.Message)
	}
	return fmt.Sprintf("status %d", resp.StatusCode)
}
