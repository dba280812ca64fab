package streaming

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Token is a short-lived credential for one streaming session.
type Token struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Valid reports whether the token is usable at the given instant.
func (t *Token) Valid(now time.Time) bool {
	return t != nil && t.Token != "" && now.Before(t.ExpiresAt)
}

// TokenSource mints streaming tokens. The backend endpoint that issues them
// is an external collaborator; this interface is its whole surface.
type TokenSource interface {
	StreamingToken(ctx context.Context) (*Token, error)
}

// HTTPTokenSource exchanges an API key for a streaming token over HTTPS.
type HTTPTokenSource struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTPTokenSource creates a token source against the given endpoint.
func NewHTTPTokenSource(endpoint, apiKey string) *HTTPTokenSource {
	return &HTTPTokenSource{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// StreamingToken requests a fresh short-lived token.
func (s *HTTPTokenSource) StreamingToken(ctx context.Context) (*Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token exchange returned status %d", resp.StatusCode)
	}

	var token Token
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if token.Token == "" {
		return nil, fmt.Errorf("token exchange returned an empty token")
	}
	return &token, nil
}

// StaticTokenSource returns a fixed token; used in tests and for services
// that accept long-lived keys directly on the socket URI.
type StaticTokenSource struct {
	token Token
}

// NewStaticTokenSource wraps a fixed token value.
func NewStaticTokenSource(value string) *StaticTokenSource {
	return &StaticTokenSource{token: Token{
		Token:     value,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}}
}

// StreamingToken returns the fixed token.
func (s *StaticTokenSource) StreamingToken(ctx context.Context) (*Token, error) {
	return &s.token, nil
}
