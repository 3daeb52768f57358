package codestore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-user-registration/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func TestRedis_SaveGet(t *testing.T) {
	ctx := context.Background()
	mr, client := setupTestRedis(t)
	s := NewRedis(client, 60*time.Second)

	require.NoError(t, s.Save(ctx, "User@Example.com", "1234"))

	assert.True(t, mr.Exists("verification_code:user@example.com"))
	assert.Equal(t, 60*time.Second, mr.TTL("verification_code:user@example.com"))

	code, ok, err := s.Get(ctx, "user@example.com")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1234", code)
}

func TestRedis_Expiry(t *testing.T) {
	ctx := context.Background()
	mr, client := setupTestRedis(t)
	s := NewRedis(client, 60*time.Second)

	require.NoError(t, s.Save(ctx, "a@b.com", "1234"))

	mr.FastForward(59 * time.Second)
	_, ok, err := s.Get(ctx, "a@b.com")
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(2 * time.Second)
	_, ok, err = s.Get(ctx, "a@b.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_DeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	_, client := setupTestRedis(t)
	s := NewRedis(client, time.Minute)

	require.NoError(t, s.Save(ctx, "a@b.com", "1234"))
	assert.NoError(t, s.Delete(ctx, "a@b.com"))
	assert.NoError(t, s.Delete(ctx, "a@b.com"))

	_, ok, err := s.Get(ctx, "a@b.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_BackendFailure(t *testing.T) {
	ctx := context.Background()
	mr, client := setupTestRedis(t)
	s := NewRedis(client, time.Minute)

	mr.SetError("server down")

	_, ok, err := s.Get(ctx, "a@b.com")
	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, domain.ErrStoreUnavailable))

	err = s.Save(ctx, "a@b.com", "1234")
	assert.True(t, errors.Is(err, domain.ErrStoreUnavailable))
}

func TestRedis_CloseReleasesClient(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	s := NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)

	require.NoError(t, s.Close())

	_, _, err = s.Get(ctx, "a@b.com")
	assert.True(t, errors.Is(err, domain.ErrStoreUnavailable))
}
