/**
 * @description
 * Client for the Resend email delivery API.
 */
package emailclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Email is a single outbound message.
type Email struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// DeliveryError is returned when the provider rejects a message.
type DeliveryError struct {
	StatusCode int
	Name       string
	Message    string
}

func (e *DeliveryError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("email delivery failed with status %d (%s): %s", e.StatusCode, e.Name, e.Message)
	}
	return fmt.Sprintf("email delivery failed with status %d: %s", e.StatusCode, e.Message)
}

// Client is a client for the Resend API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new email client.
func NewClient(baseURL, apiKey string) *Client {
	normalizedURL := strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if normalizedURL == "" {
		normalizedURL = "https://api.resend.com"
	}
	return &Client{
		baseURL:    normalizedURL,
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Send delivers an email and returns the provider message id.
func (c *Client) Send(ctx context.Context, email Email) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("email API key is not configured")
	}
	if len(email.To) == 0 {
		return "", fmt.Errorf("email has no recipients")
	}

	body, err := json.Marshal(email)
	if err != nil {
		return "", fmt.Errorf("failed to marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request to email service: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("failed to read email service response: %w", err)
	}

	if resp.StatusCode >= 400 {
		deliveryErr := &DeliveryError{StatusCode: resp.StatusCode}
		var apiErr struct {
			Name    string `json:"name"`
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			deliveryErr.Name = apiErr.Name
			deliveryErr.Message = apiErr.Message
		} else {
			deliveryErr.Message = strings.TrimSpace(string(raw))
		}
		return "", deliveryErr
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("failed to decode email service response: %w", err)
	}
	return result.ID, nil
}
