package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"webchat/models"
)

// APIClient is a thin HTTP client for the chat endpoint
type APIClient struct {
	baseURL string
	client  *http.Client
}

// NewAPIClient creates a client talking to the given base URL
func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Send posts a chat message, optionally into an existing conversation
func (c *APIClient) Send(ctx context.Context, message string, conversationID *int64) (models.ChatResponse, error) {
	reqBody := models.ChatRequest{
		Message:        message,
		ConversationID: conversationID,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return models.ChatResponse{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewBuffer(jsonBody))
	if err != nil {
		return models.ChatResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp models.ChatResponse
	if err := c.do(req, &resp); err != nil {
		return models.ChatResponse{}, err
	}
	return resp, nil
}

// Messages fetches a conversation's messages, oldest first
func (c *APIClient) Messages(ctx context.Context, conversationID int64) ([]models.MessageView, error) {
	url := c.baseURL + "/chat?conversationId=" + strconv.FormatInt(conversationID, 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var messages []models.MessageView
	if err := c.do(req, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// Conversations fetches the conversation list, most recently active first
func (c *APIClient) Conversations(ctx context.Context) ([]models.ConversationSummary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/chat", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var conversations []models.ConversationSummary
	if err := c.do(req, &conversations); err != nil {
		return nil, err
	}
	return conversations, nil
}

func (c *APIClient) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chat API error (status %d): %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
