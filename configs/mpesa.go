package config

import (
	"errors"
	"fmt"
	"strings"
)

const (
	MpesaSandboxBaseURL    = "https://sandbox.safaricom.co.ke"
	MpesaProductionBaseURL = "https://api.safaricom.co.ke"
)

var ErrConfigurationMissing = errors.New("M-Pesa credentials not configured properly")

type MpesaConfig struct {
	ConsumerKey    string
	ConsumerSecret string
	Passkey        string
	Shortcode      string
	CallbackURL    string
	BaseURL        string
	// TransactionType is CustomerPayBillOnline for paybills, CustomerBuyGoodsOnline for tills.
	TransactionType string
}

func LoadMpesa() MpesaConfig {
	baseURL := Config("MPESA_BASE_URL")
	if baseURL == "" {
		baseURL = MpesaSandboxBaseURL
		if strings.EqualFold(Config("MPESA_ENV"), "production") {
			baseURL = MpesaProductionBaseURL
		}
	}

	return MpesaConfig{
		ConsumerKey:     Config("MPESA_CONSUMER_KEY"),
		ConsumerSecret:  Config("MPESA_CONSUMER_SECRET"),
		Passkey:         Config("MPESA_PASSKEY"),
		Shortcode:       Config("MPESA_SHORTCODE"),
		CallbackURL:     Config("MPESA_CALLBACK_URL"),
		BaseURL:         strings.TrimRight(baseURL, "/"),
		TransactionType: ConfigDefault("MPESA_TRANSACTION_TYPE", "CustomerPayBillOnline"),
	}
}

// Validate reports every missing credential in one error wrapping ErrConfigurationMissing.
func (c MpesaConfig) Validate() error {
	var missing []string
	if c.ConsumerKey == "" {
		missing = append(missing, "MPESA_CONSUMER_KEY")
	}
	if c.ConsumerSecret == "" {
		missing = append(missing, "MPESA_CONSUMER_SECRET")
	}
	if c.Passkey == "" {
		missing = append(missing, "MPESA_PASSKEY")
	}
	if c.Shortcode == "" {
		missing = append(missing, "MPESA_SHORTCODE")
	}
	if c.CallbackURL == "" {
		missing = append(missing, "MPESA_CALLBACK_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrConfigurationMissing, strings.Join(missing, ", "))
	}
	return nil
}

func mask(v string) string {
	if v == "" {
		return "MISSING"
	}
	if len(v) <= 4 {
		return "***"
	}
	return "***" + v[len(v)-4:]
}

// Masked is safe to return from diagnostics endpoints.
func (c MpesaConfig) Masked() map[string]interface{} {
	shortcode := c.Shortcode
	if shortcode == "" {
		shortcode = "MISSING"
	}
	callback := c.CallbackURL
	if callback == "" {
		callback = "MISSING"
	}
	return map[string]interface{}{
		"consumerKey":    mask(c.ConsumerKey),
		"consumerSecret": mask(c.ConsumerSecret),
		"passkey":        mask(c.Passkey),
		"shortcode":      shortcode,
		"callbackUrl":    callback,
		"baseUrl":        c.BaseURL,
		"allSet":         c.Validate() == nil,
	}
}
