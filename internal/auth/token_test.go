package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	t.Parallel()

	m := NewTokenManager("test-secret", time.Hour)

	token, err := m.Issue("abc123")
	require.NoError(t, err)

	accountID, err := m.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "abc123", accountID)
}

func TestTokenManager_UniquePerIssue(t *testing.T) {
	t.Parallel()

	m := NewTokenManager("test-secret", time.Hour)

	first, err := m.Issue("abc123")
	require.NoError(t, err)
	second, err := m.Issue("abc123")
	require.NoError(t, err)

	// Every token carries a fresh jti, so re-issuing for the same account
	// never repeats a token.
	require.NotEqual(t, first, second)
}

func TestTokenManager_Expired(t *testing.T) {
	t.Parallel()

	m := NewTokenManager("test-secret", time.Nanosecond)

	token, err := m.Issue("abc123")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	_, err = m.Verify(token)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenManager_WrongSecret(t *testing.T) {
	t.Parallel()

	token, err := NewTokenManager("right-secret", time.Hour).Issue("abc123")
	require.NoError(t, err)

	_, err = NewTokenManager("wrong-secret", time.Hour).Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_Malformed(t *testing.T) {
	t.Parallel()

	m := NewTokenManager("test-secret", time.Hour)

	_, err := m.Verify("not.a.jwt")
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Verify("")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_DefaultTTL(t *testing.T) {
	t.Parallel()

	m := NewTokenManager("test-secret", 0)
	require.Equal(t, 24*time.Hour, m.TTL())
}
