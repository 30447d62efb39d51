package cache

import (
	"context"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func checkDockerAvailable() bool {
	return exec.Command("docker", "info").Run() == nil
}

func setupRedis(t *testing.T) *RedisStore {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client, err := ConnectRedis(ctx, fmt.Sprintf("%s:%s", host, port.Port()), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client, "test:")
}

// exerciseStore runs the shared contract against any Store.
func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, s.Set(ctx, "price:ltc", "71.5", time.Minute))
	v, err := s.Get(ctx, "price:ltc")
	require.NoError(t, err)
	assert.Equal(t, "71.5", v)

	ok, err := s.SetNX(ctx, "ipn:1", "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.SetNX(ctx, "ipn:1", "1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second SetNX must not overwrite")

	require.NoError(t, s.Del(ctx, "ipn:1"))
	ok, err = s.SetNX(ctx, "ipn:1", "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStore_Expiry(t *testing.T) {
	m := NewMemoryStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	ok, err := m.SetNX(ctx, "cooldown:dice:1", "1", 3*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Second)
	ok, _ = m.SetNX(ctx, "cooldown:dice:1", "1", 3*time.Second)
	assert.False(t, ok)

	now = now.Add(time.Second)
	ok, _ = m.SetNX(ctx, "cooldown:dice:1", "1", 3*time.Second)
	assert.True(t, ok, "entry must expire at its deadline")

	require.NoError(t, m.Set(ctx, "forever", "x", 0))
	now = now.Add(24 * time.Hour)
	v, err := m.Get(ctx, "forever")
	require.NoError(t, err)
	assert.Equal(t, "x", v)
}

func TestRedisStore(t *testing.T) {
	exerciseStore(t, setupRedis(t))
}
