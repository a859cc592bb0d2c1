package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsMatchObservedSLAPolicy(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	require.NotNil(t, cfg)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 48.0, cfg.SLA.DefaultTargetHours)
	assert.Equal(t, 0.75, cfg.SLA.WarningRatio)
	assert.True(t, cfg.SLA.SweepEnabled)
	assert.Equal(t, "@every 15m", cfg.SLA.SweepSchedule)
	assert.Equal(t, 10*time.Second, cfg.Notifications.DeliveryTimeout)
	assert.Zero(t, cfg.Notifications.DedupeTTL)
	assert.Equal(t, "notifications.clearance", cfg.NATS.SubjectPrefix)
	assert.Empty(t, cfg.NATS.URL)
}

func TestOverridesAreParsed(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("SLA_BURSAR_TARGET_HOURS", 24)
	v.Set("NOTIFY_DEDUPE_TTL", "30m")
	v.Set("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	v.Set("NOTIFY_DELIVERY_TIMEOUT", "not-a-duration")

	cfg := fromViper(v)
	assert.Equal(t, 24.0, cfg.SLA.BursarTargetHours)
	assert.Equal(t, 30*time.Minute, cfg.Notifications.DedupeTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 10*time.Second, cfg.Notifications.DeliveryTimeout)
}
