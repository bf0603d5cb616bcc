// Package auth is the boundary to the external credential system. The
// console never issues tokens itself; it holds one, refreshes it when the
// hub rejects it, and inspects its claims.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"mypts/pkg/errors"
)

// TokenProvider supplies bearer tokens for hub calls.
type TokenProvider interface {
	// Token returns a token believed to be valid.
	Token(ctx context.Context) (string, error)
	// Refresh obtains a fresh token after a rejection.
	Refresh(ctx context.Context) (string, error)
	// IsAdmin reports whether the current credential carries admin rights.
	IsAdmin(ctx context.Context) (bool, error)
}

// WithFreshToken runs fn with a bearer token, refreshing and retrying once
// if fn reports ErrUnauthorized. Any other failure is returned as-is.
func WithFreshToken(ctx context.Context, provider TokenProvider, fn func(token string) error) error {
	token, err := provider.Token(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to obtain token")
	}

	err = fn(token)
	if err == nil || !stderrors.Is(err, errors.ErrUnauthorized) {
		return err
	}

	token, refreshErr := provider.Refresh(ctx)
	if refreshErr != nil {
		return errors.Wrap(refreshErr, "token refresh failed")
	}
	return fn(token)
}

// StaticProvider returns a fixed token. Used in tests and one-shot tools
// where the operator supplies a token directly.
type StaticProvider struct {
	AccessToken string
	Admin       bool
}

func (p *StaticProvider) Token(ctx context.Context) (string, error) {
	return p.AccessToken, nil
}

func (p *StaticProvider) Refresh(ctx context.Context) (string, error) {
	return p.AccessToken, nil
}

func (p *StaticProvider) IsAdmin(ctx context.Context) (bool, error) {
	return p.Admin, nil
}

// RemoteProvider holds a token issued by the external auth system and
// refreshes it through the refresh endpoint. Expiry is read from the exp
// claim without verifying the signature; verification is the issuer's job.
type RemoteProvider struct {
	refreshURL string
	client     *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time
	admin   bool
}

// refreshSkew renews tokens slightly before their exp claim.
const refreshSkew = 30 * time.Second

func NewRemoteProvider(refreshURL, initialToken string, timeout time.Duration) *RemoteProvider {
	p := &RemoteProvider{
		refreshURL: refreshURL,
		client:     &http.Client{Timeout: timeout},
	}
	p.adopt(initialToken)
	return p
}

func (p *RemoteProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	token, expires := p.token, p.expires
	p.mu.Unlock()

	if token == "" {
		return p.Refresh(ctx)
	}
	if !expires.IsZero() && time.Now().After(expires.Add(-refreshSkew)) {
		return p.Refresh(ctx)
	}
	return token, nil
}

func (p *RemoteProvider) Refresh(ctx context.Context) (string, error) {
	p.mu.Lock()
	current := p.token
	p.mu.Unlock()

	body, err := json.Marshal(map[string]string{"token": current})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.refreshURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "refresh request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", errors.ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("refresh endpoint returned status %d", resp.StatusCode)
	}

	var payload struct {
		Token       string `json:"token"`
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", errors.Wrap(err, "failed to decode refresh response")
	}

	token := payload.Token
	if token == "" {
		token = payload.AccessToken
	}
	if token == "" {
		return "", fmt.Errorf("refresh endpoint returned no token")
	}

	p.adopt(token)
	return token, nil
}

func (p *RemoteProvider) IsAdmin(ctx context.Context) (bool, error) {
	if _, err := p.Token(ctx); err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.admin, nil
}

// adopt stores a token and caches its exp and user_type claims.
func (p *RemoteProvider) adopt(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.token = token
	p.expires = time.Time{}
	p.admin = false
	if token == "" {
		return
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		p.expires = exp.Time
	}
	if userType, ok := claims["user_type"].(string); ok {
		p.admin = userType == "admin"
	}
}
