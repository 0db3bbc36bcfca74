package client

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

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/aryan0dhankhar/academyportal/internal/domain"
)

// APIError is a non-2xx answer from the identity API
type APIError struct {
	StatusCode int
	Message    string
	sentinel   error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("identity api returned %d", e.StatusCode)
	}
	return fmt.Sprintf("identity api returned %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.sentinel }

// IdentityClient calls POST /auth/login and GET /auth/me on the identity API.
type IdentityClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewIdentityClient creates a client for baseURL (for example http://localhost:8080/api).
// A nil httpClient gets a traced client with a 10s timeout.
func NewIdentityClient(baseURL string, httpClient *http.Client) *IdentityClient {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &IdentityClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges email and password for a credential. A rejected login is
// returned as an *APIError wrapping domain.ErrInvalidCredentials.
func (c *IdentityClient) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	body, err := json.Marshal(loginRequest{Email: email, Password: password})
	if err != nil {
		return nil, fmt.Errorf("failed to encode login request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var result domain.LoginResult
	if err := c.do(req, &result, domain.ErrInvalidCredentials); err != nil {
		return nil, err
	}
	if !result.Success || result.Token == "" {
		return nil, &APIError{StatusCode: http.StatusOK, Message: result.Message, sentinel: domain.ErrInvalidCredentials}
	}
	return &result, nil
}

// Me fetches the identity behind token. A 401 is returned as an *APIError
// wrapping domain.ErrUnauthenticated.
func (c *IdentityClient) Me(ctx context.Context, token string) (*domain.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/me", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build me request: %w", err)
	}
	addAuthHeader(req, token)

	var identity domain.Identity
	if err := c.do(req, &identity, domain.ErrUnauthenticated); err != nil {
		return nil, err
	}
	return &identity, nil
}

func addAuthHeader(req *http.Request, token string) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func (c *IdentityClient) do(req *http.Request, out interface{}, on401 error) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("identity api request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read identity api response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			apiErr.sentinel = on401
		case http.StatusBadRequest:
			apiErr.sentinel = domain.ErrInvalidInput
		}
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode identity api response: %w", err)
	}
	return nil
}

// errorMessage pulls "message" or "error" out of a JSON error body.
func errorMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}

// IsUnavailable reports whether err means the identity API could not give an
// answer at all, as opposed to rejecting the request.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	return !errors.Is(err, domain.ErrInvalidCredentials) &&
		!errors.Is(err, domain.ErrUnauthenticated) &&
		!errors.Is(err, domain.ErrInvalidInput)
}
