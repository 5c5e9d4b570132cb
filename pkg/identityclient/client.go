/**
 * @description
 * Client for the Supabase auth admin API, used to resolve the owner of a subscription.
 */
package identityclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Cxsmxnaut/subwatch/internal/domain"
)

// ErrUserNotFound is returned when the identity provider has no such user.
var ErrUserNotFound = errors.New("user not found")

// Client is a client for the Supabase auth admin API.
type Client struct {
	baseURL        string
	serviceRoleKey string
	httpClient     *http.Client
}

// NewClient creates a new identity client.
func NewClient(baseURL, serviceRoleKey string) *Client {
	return &Client{
		baseURL:        strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		serviceRoleKey: strings.TrimSpace(serviceRoleKey),
		httpClient:     &http.Client{Timeout: 10 * time.Second},
	}
}

type adminUserResponse struct {
	ID           string              `json:"id"`
	Email        *string             `json:"email"`
	UserMetadata domain.UserMetadata `json:"user_metadata"`
}

// GetUserByID fetches a user's email and profile metadata.
func (c *Client) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("identity service base URL is not configured")
	}
	if _, err := uuid.Parse(userID); err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", userID, err)
	}

	endpoint := fmt.Sprintf("%s/auth/v1/admin/users/%s", c.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.serviceRoleKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceRoleKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request to identity service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrUserNotFound
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("identity service returned error status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload adminUserResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode identity response: %w", err)
	}
	if payload.ID == "" {
		return nil, fmt.Errorf("identity response for %s has no user id", userID)
	}

	user := &domain.User{
		ID:       payload.ID,
		Metadata: payload.UserMetadata,
	}
	if payload.Email != nil {
		user.Email = strings.TrimSpace(*payload.Email)
	}
	return user, nil
}
