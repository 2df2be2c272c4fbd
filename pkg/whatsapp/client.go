package whatsapp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"wagate/pkg/whatsapp/types"

	"github.com/sony/gobreaker"
)

// Client drives one tenant's account through a WAHA-style HTTP API. The
// send path runs behind a circuit breaker so a flapping upstream fails
// fast instead of tying up request handlers.
type Client struct {
	baseURL  string
	apiKey   string
	tenantID string
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker

	stream *eventStream
}

// NewClient creates a transport client for one tenant.
func NewClient(cfg types.ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    fmt.Sprintf("whatsapp-send-%s", cfg.TenantID),
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		tenantID: cfg.TenantID,
		http:     &http.Client{Timeout: timeout},
		breaker:  breaker,
	}
}

// Initialize starts the remote session and attaches to its event feed.
// The returned channel delivers events in emission order and is closed
// after a terminal event. The feed dial is retried once before giving up.
func (c *Client) Initialize(ctx context.Context) (<-chan types.Event, error) {
	if err := c.doCommand(ctx, http.MethodPost, c.sessionPath("start"), nil, nil); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	stream, err := newEventStream(ctx, c.baseURL, c.apiKey, c.tenantID)
	if err != nil {
		// One retry for transient dial failures before surfacing
		stream, err = newEventStream(ctx, c.baseURL, c.apiKey, c.tenantID)
		if err != nil {
			return nil, fmt.Errorf("failed to attach event stream: %w", err)
		}
	}

	c.stream = stream
	return stream.Events(), nil
}

// SendText sends a text message to the given chat ID.
func (c *Client) SendText(ctx context.Context, chatID, body string) (*types.SendResult, error) {
	payload := map[string]interface{}{
		"chatId": chatID,
		"text":   body,
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		var res types.SendResult
		if err := c.doCommand(ctx, http.MethodPost, c.sessionPath("messages/text"), payload, &res); err != nil {
			return nil, err
		}
		return &res, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*types.SendResult), nil
}

// SendMedia sends a media message. Data travels base64-encoded in JSON,
// matching the gateway API.
func (c *Client) SendMedia(ctx context.Context, chatID string, data []byte, mimeType, caption string) (*types.SendResult, error) {
	payload := map[string]interface{}{
		"chatId": chatID,
		"file": map[string]string{
			"mimetype": mimeType,
			"data":     base64.StdEncoding.EncodeToString(data),
		},
	}
	if caption != "" {
		payload["caption"] = caption
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		var res types.SendResult
		if err := c.doCommand(ctx, http.MethodPost, c.sessionPath("messages/media"), payload, &res); err != nil {
			return nil, err
		}
		return &res, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*types.SendResult), nil
}

// SetStatus updates the account's presence status message.
func (c *Client) SetStatus(ctx context.Context, text string) error {
	payload := map[string]string{"text": text}
	return c.doCommand(ctx, http.MethodPut, c.sessionPath("presence"), payload, nil)
}

// Logout terminates the remote session. The event stream is shut down
// first so no events are emitted after a successful logout.
func (c *Client) Logout(ctx context.Context) error {
	if c.stream != nil {
		c.stream.Shutdown()
	}

	if err := c.doCommand(ctx, http.MethodPost, c.sessionPath("logout"), nil, nil); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	return nil
}

// ListContacts enumerates the account's contact roster. Only valid once
// the session is ready.
func (c *Client) ListContacts(ctx context.Context) ([]types.RosterEntry, error) {
	var entries []types.RosterEntry
	if err := c.doCommand(ctx, http.MethodGet, c.sessionPath("contacts"), nil, &entries); err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	return entries, nil
}

// ListChats enumerates the account's open chats. Only valid once the
// session is ready.
func (c *Client) ListChats(ctx context.Context) ([]types.RosterEntry, error) {
	var entries []types.RosterEntry
	if err := c.doCommand(ctx, http.MethodGet, c.sessionPath("chats"), nil, &entries); err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	return entries, nil
}

func (c *Client) sessionPath(suffix string) string {
	return fmt.Sprintf("/api/sessions/%s/%s", c.tenantID, suffix)
}

func (c *Client) doCommand(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr types.APIErrorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Message != "" {
			if resp.StatusCode == http.StatusUnprocessableEntity {
				return fmt.Errorf("request failed with status %d: %s: %w", resp.StatusCode, apiErr.Message, types.ErrPeerUnregistered)
			}
			return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
