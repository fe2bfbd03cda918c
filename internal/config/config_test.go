package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("FREIGHT_JWT_SECRET", "s3cret")
	t.Setenv("FREIGHT_AUTH_PROVIDER", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "jwt", cfg.Auth.Provider)
	assert.Equal(t, "none", cfg.Events.Sink)
	assert.Equal(t, int32(10), cfg.DB.MaxConns)
	assert.Equal(t, "30-M", cfg.Limits.BidRate)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("FREIGHT_JWT_SECRET", "s3cret")
	t.Setenv("FREIGHT_HTTP_ADDR", ":9090")
	t.Setenv("FREIGHT_KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("FREIGHT_EVENTS_SINK", "kafka")
	t.Setenv("FREIGHT_DB_MAX_CONNS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.Brokers)
	assert.Equal(t, int32(10), cfg.DB.MaxConns)
}

func TestLoad_RejectsUnknownProviders(t *testing.T) {
	t.Setenv("FREIGHT_AUTH_PROVIDER", "saml")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("FREIGHT_AUTH_PROVIDER", "firebase")
	t.Setenv("FREIGHT_EVENTS_SINK", "carrier-pigeon")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoad_JWTRequiresSecret(t *testing.T) {
	t.Setenv("FREIGHT_AUTH_PROVIDER", "jwt")
	t.Setenv("FREIGHT_JWT_SECRET", "")
	_, err := Load()
	assert.Error(t, err)
}
