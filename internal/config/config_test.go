package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.True(t, cfg.DBEnabled)
	assert.Equal(t, BackendPostgres, cfg.Backend.Mode)
	assert.Equal(t, TransportPostgres, cfg.Realtime.Transport)
	assert.Equal(t, "vetorial", cfg.Database.Database)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)
	assert.Empty(t, cfg.Dashboard.Year)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("BACKEND_MODE", BackendMemory)
	t.Setenv("REALTIME_TRANSPORT", TransportRedis)
	t.Setenv("DB_ENABLED", "false")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("MQTT_QOS", "0")
	t.Setenv("DASHBOARD_YEAR", "2024")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.DBEnabled)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, byte(0), cfg.MQTT.QoS)
	assert.Equal(t, "2024", cfg.Dashboard.Year)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown backend":          {"BACKEND_MODE": "sqlite"},
		"rest without url":         {"BACKEND_MODE": BackendREST, "REALTIME_TRANSPORT": TransportNone},
		"pg notify without pg":     {"BACKEND_MODE": BackendMemory},
		"unknown transport":        {"REALTIME_TRANSPORT": "websocket"},
		"malformed dashboard year": {"DASHBOARD_YEAR": "24"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
