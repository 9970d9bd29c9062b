package user

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("Abcdef1")
	require.NoError(t, err)
	require.NotEqual(t, "Abcdef1", hash)

	require.True(t, CheckPassword("Abcdef1", hash))
	require.False(t, CheckPassword("Abcdef2", hash))
	require.False(t, CheckPassword("", hash))
}

func TestHashPassword_SaltedPerCall(t *testing.T) {
	t.Parallel()

	first, err := HashPassword("Abcdef1")
	require.NoError(t, err)
	second, err := HashPassword("Abcdef1")
	require.NoError(t, err)

	require.NotEqual(t, first, second)
	require.True(t, CheckPassword("Abcdef1", first))
	require.True(t, CheckPassword("Abcdef1", second))
}
