package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testConfig = Config{Secret: "test-secret", Issuer: "prayer.test"}

func TestIssueAndParseRoundTrip(t *testing.T) {
	now := time.Now()
	token, err := Issue(testConfig, AdminSubject, AdminScopes, now, now.Add(time.Hour))
	require.NoError(t, err)

	claims, err := Parse(token, testConfig)
	require.NoError(t, err)
	require.Equal(t, AdminSubject, claims.Subject)
	require.True(t, claims.HasScope(ScopeAdminRead))
	require.True(t, claims.HasScope(ScopeAdminAdjust))
	require.False(t, claims.HasScope("activities:write"))
	require.WithinDuration(t, now.Add(time.Hour), claims.ExpiresAt, time.Second)
}

func TestParseRejectsBadTokens(t *testing.T) {
	now := time.Now()

	_, err := Parse("  ", testConfig)
	require.ErrorIs(t, err, ErrMissingToken)

	expired, err := Issue(testConfig, AdminSubject, AdminScopes, now.Add(-2*time.Hour), now.Add(-time.Hour))
	require.NoError(t, err)
	_, err = Parse(expired, testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)

	otherIssuer, err := Issue(Config{Secret: testConfig.Secret, Issuer: "someone-else"}, AdminSubject, AdminScopes, now, now.Add(time.Hour))
	require.NoError(t, err)
	_, err = Parse(otherIssuer, testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)

	otherSecret, err := Issue(Config{Secret: "nope", Issuer: testConfig.Issuer}, AdminSubject, AdminScopes, now, now.Add(time.Hour))
	require.NoError(t, err)
	_, err = Parse(otherSecret, testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticatorLogin(t *testing.T) {
	hash, err := HashPassword("vitanova2026admin")
	require.NoError(t, err)

	authn, err := NewAuthenticator(testConfig, hash, 12*time.Hour)
	require.NoError(t, err)

	_, err = authn.Login("wrong")
	require.True(t, errors.Is(err, ErrInvalidCredentials))

	session, err := authn.Login("vitanova2026admin")
	require.NoError(t, err)
	require.True(t, session.Valid(time.Now()))
	require.False(t, session.Valid(time.Now().Add(13*time.Hour)))

	claims, err := Parse(session.Token, testConfig)
	require.NoError(t, err)
	require.True(t, claims.HasScope(ScopeAdminAdjust))
}

func TestNewAuthenticatorRejectsMalformedHash(t *testing.T) {
	_, err := NewAuthenticator(testConfig, "plaintext", time.Hour)
	require.Error(t, err)
}

func TestNilSessionIsInvalid(t *testing.T) {
	var session *AdminSession
	require.False(t, session.Valid(time.Now()))
}

func TestMiddlewareGuardsAdminRoutesOnly(t *testing.T) {
	var seen *Claims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := NewMiddleware(testConfig, AdminOnly("/v1/admin/", "/v1/admin/session")).Wrap(next)

	public := httptest.NewRecorder()
	handler.ServeHTTP(public, httptest.NewRequest(http.MethodGet, "/v1/aggregates", nil))
	require.Equal(t, http.StatusNoContent, public.Code)
	require.Nil(t, seen)

	login := httptest.NewRecorder()
	handler.ServeHTTP(login, httptest.NewRequest(http.MethodPost, "/v1/admin/session", nil))
	require.Equal(t, http.StatusNoContent, login.Code)

	denied := httptest.NewRecorder()
	handler.ServeHTTP(denied, httptest.NewRequest(http.MethodGet, "/v1/admin/entries", nil))
	require.Equal(t, http.StatusUnauthorized, denied.Code)
	require.JSONEq(t, `{"type":"unauthorized","detail":"missing bearer token"}`, denied.Body.String())

	now := time.Now()
	token, err := Issue(testConfig, AdminSubject, AdminScopes, now, now.Add(time.Minute))
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/v1/admin/entries", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	allowed := httptest.NewRecorder()
	handler.ServeHTTP(allowed, req)
	require.Equal(t, http.StatusNoContent, allowed.Code)
	require.NotNil(t, seen)
	require.Equal(t, AdminSubject, seen.Subject)
}
