package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"merchant-settlement/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	s := miniredis.RunT(t)

	client, err := NewClient(context.Background(), config.RedisConfig{
		Host:      s.Host(),
		Port:      mustPort(t, s),
		PoolSize:  5,
		OpTimeout: 200 * time.Millisecond,
	}, zerolog.Nop())
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, 5, client.Options().PoolSize)
	assert.Equal(t, 200*time.Millisecond, client.Options().ReadTimeout)
	assert.Equal(t, 200*time.Millisecond, client.Options().WriteTimeout)

	assert.NoError(t, NewHealthCheck(client).Ping(context.Background()))
	assert.Equal(t, "redis", NewHealthCheck(client).Name())
}

func TestNewClient_Unreachable(t *testing.T) {
	s := miniredis.RunT(t)
	port := mustPort(t, s)
	s.Close()

	_, err := NewClient(context.Background(), config.RedisConfig{Host: "127.0.0.1", Port: port}, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pinging redis")
}

func mustPort(t *testing.T, s *miniredis.Miniredis) int {
	t.Helper()
	var port int
	_, err := fmt.Sscanf(s.Port(), "%d", &port)
	require.NoError(t, err)
	return port
}
