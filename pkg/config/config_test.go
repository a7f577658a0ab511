package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeConfig struct {
	Port      int    `env:"TEST_CFG_PORT" envDefault:"8080"`
	Namespace string `env:"TEST_CFG_NAMESPACE" envDefault:"gems:cart"`
	Gateway   string `env:"TEST_CFG_GATEWAY" envDefault:"mock"`
	Kafka     bool   `env:"TEST_CFG_KAFKA" envDefault:"false"`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg storeConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "gems:cart", cfg.Namespace)
	assert.Equal(t, "mock", cfg.Gateway)
	assert.False(t, cfg.Kafka)
}

func TestLoad_FromEnvVars(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "9090")
	t.Setenv("TEST_CFG_NAMESPACE", "staging:cart")
	t.Setenv("TEST_CFG_GATEWAY", "midtrans")
	t.Setenv("TEST_CFG_KAFKA", "true")

	var cfg storeConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "staging:cart", cfg.Namespace)
	assert.Equal(t, "midtrans", cfg.Gateway)
	assert.True(t, cfg.Kafka)
}

func TestLoad_InvalidType(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "not-a-number")

	var cfg storeConfig
	err := Load(&cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

type requiredConfig struct {
	ServerKey string `env:"TEST_CFG_SERVER_KEY,required"`
}

func TestLoad_RequiredFieldMissing(t *testing.T) {
	var cfg requiredConfig
	err := Load(&cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

type checkedConfig struct {
	Gateway string `env:"TEST_CFG_CHECKED_GATEWAY" envDefault:"mock"`
}

func (c *checkedConfig) Validate() error {
	if c.Gateway != "mock" && c.Gateway != "midtrans" {
		return errors.New("unknown gateway")
	}
	return nil
}

func TestLoad_RunsValidate(t *testing.T) {
	t.Setenv("TEST_CFG_CHECKED_GATEWAY", "paypal")

	var cfg checkedConfig
	err := Load(&cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate config")
	assert.Contains(t, err.Error(), "unknown gateway")
}

func TestLoad_ValidatePasses(t *testing.T) {
	var cfg checkedConfig
	assert.NoError(t, Load(&cfg))
}
