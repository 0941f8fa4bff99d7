// Package client talks to the relay's chat endpoint on behalf of one user
// session.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

const fallbackError = "Something went wrong"

type Client struct {
	baseURL    string
	httpClient *http.Client
	userID     string
	sessionID  string
}

func New(baseURL, userID, sessionID string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		userID:     userID,
		sessionID:  sessionID,
	}
}

func (c *Client) UserID() string    { return c.userID }
func (c *Client) SessionID() string { return c.sessionID }

type chatRequest struct {
	Message   string `json:"message"`
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
}

type chatResponse struct {
	Reply string `json:"reply"`
	Error string `json:"error"`
}

// Send posts message and returns the model reply. For any non-2xx response
// the returned error carries the text the user should see, including the
// quota message.
func (c *Client) Send(ctx context.Context, message string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Message:   message,
		UserID:    c.userID,
		SessionID: c.sessionID,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	var data chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", errors.New(fallbackError)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		switch {
		case data.Error != "":
			return "", errors.New(data.Error)
		case data.Reply != "":
			return "", errors.New(data.Reply)
		default:
			return "", errors.New(fallbackError)
		}
	}
	return data.Reply, nil
}
