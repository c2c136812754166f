// Package client implements the consumer side of the chat API: request
// submission plus incremental decoding of the SSE response stream into
// per-fragment callbacks.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tmaxmax/go-sse"

	"chatconnect/internal/models"
)

// StreamError is a terminal error event signaled by the server inside an
// otherwise healthy SSE stream.
type StreamError struct {
	Detail string
}

func (e *StreamError) Error() string { return e.Detail }

// wireEvent mirrors the SSE JSON union. Pointer fields discriminate which
// variant arrived.
type wireEvent struct {
	Chunk        *string `json:"chunk"`
	Error        *string `json:"error"`
	Done         bool    `json:"done"`
	FullResponse *string `json:"full_response"`
}

// Client talks to the chat API server.
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// New creates a client for the server at baseURL.
func New(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		log:     log,
	}
}

// Send submits one chat turn and decodes the streamed response. onChunk is
// invoked for every fragment in arrival order. Send returns exactly once per
// call with the final response text; when the stream breaks it carries
// whatever text accumulated before the failure, alongside the error.
func (c *Client) Send(ctx context.Context, message string, onChunk func(string)) (string, error) {
	body, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send chat request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", decodeAPIError(resp)
	}

	deliver := func(full *strings.Builder, fragment string) {
		full.WriteString(fragment)
		if onChunk != nil {
			onChunk(fragment)
		}
	}

	var full strings.Builder
	for ev, err := range sse.Read(resp.Body, nil) {
		if err != nil {
			// transport broke mid-stream; the fragments already
			// delivered stand
			return full.String(), fmt.Errorf("read event stream: %w", err)
		}
		var frame wireEvent
		if err := json.Unmarshal([]byte(ev.Data), &frame); err != nil {
			c.log.Warn().Err(err).Str("data", ev.Data).Msg("skipping malformed stream event")
			continue
		}
		switch {
		case frame.Error != nil:
			return full.String(), &StreamError{Detail: *frame.Error}
		case frame.Done:
			if frame.Chunk != nil && *frame.Chunk != "" {
				deliver(&full, *frame.Chunk)
			}
			if frame.FullResponse != nil {
				return *frame.FullResponse, nil
			}
			return full.String(), nil
		case frame.Chunk != nil && *frame.Chunk != "":
			deliver(&full, *frame.Chunk)
		}
	}
	// The stream ended without a terminal event. Treat it as best-effort
	// completion rather than silent failure.
	return full.String(), nil
}

// SendSync submits one chat turn over the non-streaming endpoint.
func (c *Client) SendSync(ctx context.Context, message string) (string, error) {
	body, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat/sync", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send chat request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", decodeAPIError(resp)
	}
	var payload struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return payload.Response, nil
}

// Clear empties the server-side conversation history.
func (c *Client) Clear(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat/clear", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send clear request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}
	return nil
}

// History fetches the server-side conversation snapshot.
func (c *Client) History(ctx context.Context) ([]models.Message, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/chat/history", nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("send history request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, 0, decodeAPIError(resp)
	}
	var payload struct {
		Messages           []models.Message `json:"messages"`
		ConversationLength int              `json:"conversation_length"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, 0, fmt.Errorf("decode history: %w", err)
	}
	return payload.Messages, payload.ConversationLength, nil
}

// Health reports the server's health snapshot.
type Health struct {
	Status           string `json:"status"`
	Provider         string `json:"provider"`
	Model            string `json:"model"`
	APIKeyConfigured bool   `json:"api_key_configured"`
}

// CheckHealth fetches the server health endpoint.
func (c *Client) CheckHealth(ctx context.Context) (*Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send health request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}
	var health Health
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("decode health: %w", err)
	}
	return &health, nil
}

// decodeAPIError surfaces the detail field carried by non-2xx responses.
func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var apiErr struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Detail != "" {
		return fmt.Errorf("server error (%d): %s", resp.StatusCode, apiErr.Detail)
	}
	return fmt.Errorf("server error (%d)", resp.StatusCode)
}
