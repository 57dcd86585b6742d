package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/wagers/internal/apperrors"
	"github.com/nkiryanov/wagers/internal/testutil"
)

func TestRevocationStore(t *testing.T) {
	t.Run("revoke until expiration", func(t *testing.T) {
		mr, client := testutil.StartRedis(t)
		s := NewRevocationStore(client)

		err := s.Revoke(t.Context(), "jti-1", time.Now().Add(time.Minute))
		require.NoError(t, err)

		revoked, err := s.IsRevoked(t.Context(), "jti-1")
		require.NoError(t, err)
		require.True(t, revoked)

		revoked, err = s.IsRevoked(t.Context(), "jti-2")
		require.NoError(t, err)
		require.False(t, revoked, "other tokens are not affected")

		mr.FastForward(time.Minute + time.Second)

		revoked, err = s.IsRevoked(t.Context(), "jti-1")
		require.NoError(t, err)
		require.False(t, revoked, "record expires together with the token")
	})

	t.Run("expired token ignored", func(t *testing.T) {
		mr, client := testutil.StartRedis(t)
		s := NewRevocationStore(client)

		err := s.Revoke(t.Context(), "jti-1", time.Now().Add(-time.Second))

		require.NoError(t, err)
		require.Empty(t, mr.Keys())
	})

	t.Run("redis down", func(t *testing.T) {
		mr, client := testutil.StartRedis(t)
		s := NewRevocationStore(client)
		mr.Close()

		_, err := s.IsRevoked(t.Context(), "jti-1")
		require.ErrorIs(t, err, apperrors.ErrUnavailable)

		err = s.Revoke(t.Context(), "jti-1", time.Now().Add(time.Minute))
		require.ErrorIs(t, err, apperrors.ErrUnavailable)
	})
}

func TestNewRedisClient(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		mr, _ := testutil.StartRedis(t)

		client, err := NewRedisClient(t.Context(), "redis://"+mr.Addr()+"/0")

		require.NoError(t, err)
		require.NoError(t, client.Close())
	})

	t.Run("empty url", func(t *testing.T) {
		_, err := NewRedisClient(t.Context(), "")
		require.Error(t, err)
	})

	t.Run("not reachable", func(t *testing.T) {
		mr, _ := testutil.StartRedis(t)
		addr := mr.Addr()
		mr.Close()

		_, err := NewRedisClient(t.Context(), "redis://"+addr)
		require.Error(t, err)
	})
}
