package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMpesaConfigValidate(t *testing.T) {
	cfg := MpesaConfig{ConsumerKey: "key", Passkey: "pass"}

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfigurationMissing))
	assert.Contains(t, err.Error(), "MPESA_CONSUMER_SECRET")
	assert.Contains(t, err.Error(), "MPESA_SHORTCODE")
	assert.Contains(t, err.Error(), "MPESA_CALLBACK_URL")
	assert.NotContains(t, err.Error(), "MPESA_PASSKEY")

	cfg.ConsumerSecret = "secret"
	cfg.Shortcode = "174379"
	cfg.CallbackURL = "https://shop.example.com/api/mpesa/callback"
	assert.NoError(t, cfg.Validate())
}

func TestMpesaConfigMasked(t *testing.T) {
	cfg := MpesaConfig{ConsumerKey: "abcdefgh1234", Shortcode: "174379"}
	masked := cfg.Masked()

	assert.Equal(t, "***1234", masked["consumerKey"])
	assert.Equal(t, "MISSING", masked["consumerSecret"])
	assert.Equal(t, "174379", masked["shortcode"])
	assert.Equal(t, false, masked["allSet"])
}

func TestLoadMpesaSelectsEnvironment(t *testing.T) {
	t.Setenv("MPESA_BASE_URL", "")
	t.Setenv("MPESA_ENV", "production")
	assert.Equal(t, MpesaProductionBaseURL, LoadMpesa().BaseURL)

	t.Setenv("MPESA_ENV", "")
	assert.Equal(t, MpesaSandboxBaseURL, LoadMpesa().BaseURL)

	t.Setenv("MPESA_BASE_URL", "http://127.0.0.1:9999/")
	assert.Equal(t, "http://127.0.0.1:9999", LoadMpesa().BaseURL)
}
