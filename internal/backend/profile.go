package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"fitpulse.app/coach/common/logger"
	"fitpulse.app/coach/core/config"
)

// ErrInvalidToken means the fitness backend rejected the credential or
// returned a response without a usable user identity.
var ErrInvalidToken = errors.New("invalid token")

// User is the slice of the backend profile this pipeline cares about.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ProfileClient validates a bearer credential against the fitness backend's
// profile endpoint. Narrow on purpose: the gateway and API middleware are
// testable with a fake and never touch the real network in tests.
type ProfileClient interface {
	ValidateToken(ctx context.Context, token string) (*User, error)
}

type profileResponse struct {
	Success bool `json:"success"`
	Data    struct {
		User User `json:"user"`
	} `json:"data"`
}

type httpProfileClient struct {
	url        string
	httpClient *http.Client
}

func NewProfileClient(cfg config.BackendConfig) ProfileClient {
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &httpProfileClient{
		url:        cfg.ProfileURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *httpProfileClient) ValidateToken(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("building profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling profile endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("reading profile response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		slog.WarnContext(ctx, "profile endpoint rejected credential",
			"status", resp.StatusCode,
			"body", logger.Truncate(string(body), 256))
		return nil, ErrInvalidToken
	}

	var parsed profileResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		slog.WarnContext(ctx, "malformed profile response",
			"error", err,
			"body", logger.Truncate(string(body), 256))
		return nil, ErrInvalidToken
	}

	if !parsed.Success || parsed.Data.User.ID == 0 {
		return nil, ErrInvalidToken
	}

	user := parsed.Data.User
	return &user, nil
}
