package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-clearance-api/pkg/config"
)

func TestOptionsFromConfig(t *testing.T) {
	opts := Options(config.RedisConfig{Host: "cache.internal", Port: 6380, Password: "pw", DB: 2})

	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, ClientName, opts.ClientName)
	assert.Equal(t, 500*time.Millisecond, opts.ReadTimeout)
}

func TestNewRedisRequiresHost(t *testing.T) {
	client, err := NewRedis(context.Background(), config.RedisConfig{})
	require.Error(t, err)
	assert.Nil(t, client)
}
