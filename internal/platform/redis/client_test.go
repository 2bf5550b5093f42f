package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"las/internal/platform/config"
	"las/pkg/platform/sentinel"
)

func TestOpenWithoutURLKeepsLocksInProcess(t *testing.T) {
	c, err := Open(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestOpenRejectsMalformedURL(t *testing.T) {
	_, err := Open(context.Background(), config.RedisConfig{URL: "http://localhost:6379"})
	assert.ErrorContains(t, err, "parse REDIS_URL")
}

func TestOpenReportsUnreachableServerAsUnavailable(t *testing.T) {
	_, err := Open(context.Background(), config.RedisConfig{
		URL:         "redis://127.0.0.1:1/0",
		PoolSize:    1,
		DialTimeout: 100 * time.Millisecond,
	})
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
}
