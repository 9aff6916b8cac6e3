package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STUDIO_POLL_INTERVAL", "")
	t.Setenv("HTTP_PORT", "")

	cfg := Load()
	assert.Equal(t, "8002", cfg.HTTPPort)
	assert.Equal(t, 5*time.Second, cfg.StudioPollInterval)
	assert.Equal(t, "video", cfg.QueueName)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STUDIO_POLL_INTERVAL", "750ms")
	t.Setenv("S3_PATH_STYLE", "true")
	t.Setenv("RATE_LIMIT_CAPACITY", "not-a-number")

	cfg := Load()
	assert.Equal(t, 750*time.Millisecond, cfg.StudioPollInterval)
	assert.True(t, cfg.S3PathStyle)
	assert.Equal(t, 10, cfg.RateLimitCapacity)
}
