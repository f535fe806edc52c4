// Package converge is the client for the delegated Converge conversation
// API: user provisioning, per-session conversations and message forwarding.
package converge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrUpstream marks any transport or status failure from the Converge API.
// Handlers convert it into a user-visible retry message instead of exposing
// the raw cause.
var ErrUpstream = errors.New("converge api failure")

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// CreateUser registers email with the delegated backend. An already-existing
// user is not an error.
func (c *Client) CreateUser(ctx context.Context, email string) error {
	payload := map[string]string{"email": email}
	status, _, err := c.postJSON(ctx, "/users", payload)
	if err != nil {
		return err
	}
	// 409 means the user exists, which registration treats as success
	if status == http.StatusConflict {
		return nil
	}
	if status >= 300 {
		return fmt.Errorf("%w: create user status %d", ErrUpstream, status)
	}
	return nil
}

// CreateConversation opens a conversation for email and returns its id.
func (c *Client) CreateConversation(ctx context.Context, email string) (string, error) {
	payload := map[string]string{"email": email}
	status, raw, err := c.postJSON(ctx, "/conversations", payload)
	if err != nil {
		return "", err
	}
	if status >= 300 {
		return "", fmt.Errorf("%w: create conversation status %d", ErrUpstream, status)
	}

	var parsed struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%w: parse conversation response failed: %v", ErrUpstream, err)
	}
	if parsed.ID == "" {
		return "", fmt.Errorf("%w: conversation response missing id", ErrUpstream)
	}
	return parsed.ID, nil
}

// CreateMessage forwards content to an existing conversation and returns the
// service's answer verbatim.
func (c *Client) CreateMessage(ctx context.Context, conversationID, content string) (string, error) {
	payload := map[string]string{
		"conversationId": conversationID,
		"content":        content,
	}
	status, raw, err := c.postJSON(ctx, "/messages", payload)
	if err != nil {
		return "", err
	}
	if status >= 300 {
		return "", fmt.Errorf("%w: create message status %d", ErrUpstream, status)
	}

	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%w: parse message response failed: %v", ErrUpstream, err)
	}
	return parsed.Message, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload interface{}) (int, []byte, error) {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: marshal request failed: %v", ErrUpstream, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: build request failed: %v", ErrUpstream, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: request failed: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: read response failed: %v", ErrUpstream, err)
	}
	return resp.StatusCode, raw, nil
}
