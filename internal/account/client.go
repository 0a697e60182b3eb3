// ABOUTME: HTTP client for the remote account login and logout endpoints
// ABOUTME: Maps 404 to ErrAccountNotFound and other non-2xx responses to StatusError

package account

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ErrAccountNotFound is returned when the remote service reports no such account.
var ErrAccountNotFound = errors.New("account not found")

// StatusError is returned for any other non-2xx response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("account service returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("account service returned %d", e.StatusCode)
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
	RememberMe bool   `json:"rememberMe"`
}

// Summary describes the authenticated primary account.
type Summary struct {
	ID           string `json:"id"`
	DisplayName  string `json:"displayName"`
	Email        string `json:"email"`
	BusinessName string `json:"businessName"`
}

// LoginResult is the body of a successful login response.
type LoginResult struct {
	AccessToken    string  `json:"accessToken"`
	RefreshToken   string  `json:"refreshToken"`
	ExpiresIn      int64   `json:"expiresIn"`
	AccountSummary Summary `json:"accountSummary"`
}

// Client talks to the remote account service.
type Client interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Logout(ctx context.Context, accessToken string) error
}

// HTTPClient implements Client over JSON HTTP.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a client for the service at baseURL.
// A zero timeout leaves requests bounded only by their context.
func NewHTTPClient(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "account"),
	}
}

// Login posts credentials and decodes the issued tokens.
func (c *HTTPClient) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding login request: %w", err)
	}

	resp, err := c.post(ctx, "/auth/login", body, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		c.logger.Debug("remote login rejected", "status", resp.StatusCode)
		return nil, err
	}

	var result LoginResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding login response: %w", err)
	}
	if result.AccessToken == "" {
		return nil, fmt.Errorf("login response missing accessToken")
	}

	return &result, nil
}

// Logout invalidates the access token on the remote service.
func (c *HTTPClient) Logout(ctx context.Context, accessToken string) error {
	resp, err := c.post(ctx, "/auth/logout", nil, accessToken)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return checkStatus(resp)
}

func (c *HTTPClient) post(ctx context.Context, path string, body []byte, bearer string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", path, err)
	}
	return resp, nil
}

// checkStatus maps non-2xx responses to errors, reading a short error message
// from a {"message": "..."} body when present.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrAccountNotFound
	}

	var payload struct {
		Message string `json:"message"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(data, &payload)

	return &StatusError{StatusCode: resp.StatusCode, Message: payload.Message}
}
