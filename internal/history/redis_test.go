package history

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// Runs against a real server when STARKSHIELD_TEST_REDIS_URL is set.
func TestRedisStore(t *testing.T) {
	url := os.Getenv("STARKSHIELD_TEST_REDIS_URL")
	if url == "" {
		t.Skip("STARKSHIELD_TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())

	store := NewRedisStore(client, "starkshield:test:"+t.Name())
	require.NoError(t, store.Clear(context.Background()))

	s := new(StoreSuite)
	s.SetT(t)
	s.exercise(store)
}
