package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Client talks to the messaging platform service. It only covers the calls
// the reservation flow needs: channel provisioning, visibility, and message
// rendering inside a buyer's channel.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, client *http.Client) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: client,
	}
}

type Message struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

func (c *Client) CreateChannel(ctx context.Context, scope, kind string) error {
	body := map[string]string{"scope": scope, "kind": kind}
	return c.post(ctx, "/channels", body, nil)
}

func (c *Client) ShowChannel(ctx context.Context, scope, viewer string) error {
	body := map[string]string{"viewer": viewer}
	return c.post(ctx, fmt.Sprintf("/channels/%s/show", scope), body, nil)
}

func (c *Client) HideChannel(ctx context.Context, scope, viewer string) error {
	body := map[string]string{"viewer": viewer}
	return c.post(ctx, fmt.Sprintf("/channels/%s/hide", scope), body, nil)
}

func (c *Client) RenameChannel(ctx context.Context, scope, name string) error {
	body := map[string]string{"name": name}
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/channels/%s/name", scope), body, nil)
}

func (c *Client) SendMessage(ctx context.Context, scope, content string) (string, error) {
	body := map[string]string{"content": content}
	var msg Message
	if err := c.post(ctx, fmt.Sprintf("/channels/%s/messages", scope), body, &msg); err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (c *Client) EditMessage(ctx context.Context, scope, messageID, content string) error {
	body := map[string]string{"content": content}
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/channels/%s/messages/%s", scope, messageID), body, nil)
}

func (c *Client) GetMessage(ctx context.Context, scope, messageID string) (Message, error) {
	var msg Message
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/channels/%s/messages/%s", scope, messageID), nil, &msg)
	return msg, err
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("platform service returned status %d for %s %s", resp.StatusCode, method, path)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode platform response: %w", err)
		}
	}
	return nil
}
