package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"mypts/pkg/errors"
)

type recordingProvider struct {
	tokens    []string
	refreshes int
	tokenErr  error
}

func (p *recordingProvider) Token(ctx context.Context) (string, error) {
	if p.tokenErr != nil {
		return "", p.tokenErr
	}
	return p.tokens[0], nil
}

func (p *recordingProvider) Refresh(ctx context.Context) (string, error) {
	p.refreshes++
	return p.tokens[1], nil
}

func (p *recordingProvider) IsAdmin(ctx context.Context) (bool, error) {
	return true, nil
}

func TestWithFreshTokenHappyPath(t *testing.T) {
	provider := &recordingProvider{tokens: []string{"first", "second"}}

	var used []string
	err := WithFreshToken(context.Background(), provider, func(token string) error {
		used = append(used, token)
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, []string{"first"}, used)
	assert.Equal(t, 0, provider.refreshes)
}

func TestWithFreshTokenRetriesOnceOnUnauthorized(t *testing.T) {
	provider := &recordingProvider{tokens: []string{"stale", "fresh"}}

	var used []string
	err := WithFreshToken(context.Background(), provider, func(token string) error {
		used = append(used, token)
		if token == "stale" {
			return errors.ErrUnauthorized
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, []string{"stale", "fresh"}, used)
	assert.Equal(t, 1, provider.refreshes)
}

func TestWithFreshTokenDoesNotRetryOtherErrors(t *testing.T) {
	provider := &recordingProvider{tokens: []string{"first", "second"}}

	calls := 0
	err := WithFreshToken(context.Background(), provider, func(token string) error {
		calls++
		return assert.AnError
	})

	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, provider.refreshes)
}

func TestWithFreshTokenGivesUpAfterSecondRejection(t *testing.T) {
	provider := &recordingProvider{tokens: []string{"stale", "also-stale"}}

	err := WithFreshToken(context.Background(), provider, func(token string) error {
		return errors.ErrUnauthorized
	})

	assert.ErrorIs(t, err, errors.ErrUnauthorized)
	assert.Equal(t, 1, provider.refreshes, "exactly one refresh attempt")
}

func signedToken(t *testing.T, expiresIn time.Duration, userType string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"exp":       time.Now().Add(expiresIn).Unix(),
		"user_type": userType,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	assert.NoError(t, err)
	return token
}

func TestRemoteProviderReturnsUnexpiredToken(t *testing.T) {
	token := signedToken(t, time.Hour, "admin")
	provider := NewRemoteProvider("http://unused", token, time.Second)

	got, err := provider.Token(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, token, got)

	admin, err := provider.IsAdmin(context.Background())
	assert.NoError(t, err)
	assert.True(t, admin)
}

func TestRemoteProviderRefreshesExpiringToken(t *testing.T) {
	fresh := signedToken(t, time.Hour, "member")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotEmpty(t, body["token"])
		json.NewEncoder(w).Encode(map[string]string{"token": fresh})
	}))
	defer server.Close()

	// Inside the renewal window, so Token must hit the refresh endpoint.
	provider := NewRemoteProvider(server.URL, signedToken(t, 10*time.Second, "member"), time.Second)

	got, err := provider.Token(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, fresh, got)

	admin, err := provider.IsAdmin(context.Background())
	assert.NoError(t, err)
	assert.False(t, admin)
}

func TestRemoteProviderAcceptsAccessTokenField(t *testing.T) {
	fresh := signedToken(t, time.Hour, "admin")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access_token": fresh})
	}))
	defer server.Close()

	provider := NewRemoteProvider(server.URL, "", time.Second)

	got, err := provider.Refresh(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, fresh, got)
}

func TestRemoteProviderRefreshRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	provider := NewRemoteProvider(server.URL, "", time.Second)

	_, err := provider.Refresh(context.Background())
	assert.ErrorIs(t, err, errors.ErrUnauthorized)
}

func TestRemoteProviderMalformedTokenIsStillUsable(t *testing.T) {
	provider := NewRemoteProvider("http://unused", "not-a-jwt", time.Second)

	got, err := provider.Token(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "not-a-jwt", got)

	admin, err := provider.IsAdmin(context.Background())
	assert.NoError(t, err)
	assert.False(t, admin)
}
