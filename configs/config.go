package config

import (
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

var loadOnce sync.Once

func Config(key string) string {
	loadOnce.Do(func() {
		if err := godotenv.Load(".env"); err != nil {
			logrus.Debug("Warning: .env file not found, reading from system environment variables")
		}
	})

	return os.Getenv(key)
}

// ConfigDefault returns the value of key, or fallback when it is unset.
func ConfigDefault(key, fallback string) string {
	if v := Config(key); v != "" {
		return v
	}
	return fallback
}

func ConfigDuration(key string, fallback time.Duration) time.Duration {
	v := Config(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logrus.WithField("key", key).Warnf("invalid duration %q, using %s", v, fallback)
		return fallback
	}
	return d
}

func ConfigInt(key string, fallback int) int {
	v := Config(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logrus.WithField("key", key).Warnf("invalid integer %q, using %d", v, fallback)
		return fallback
	}
	return n
}

type AppConfig struct {
	Port             string
	JWTSecret        string
	PaymentTimeout   time.Duration
	CallbackMaxTries int
	SweepSchedule    string
	RetrySchedule    string
	ReceiptFolder    string
	MediaFolder      string
}

func LoadApp() AppConfig {
	return AppConfig{
		Port:             ConfigDefault("PORT", "8080"),
		JWTSecret:        Config("JWT_SECRET"),
		PaymentTimeout:   ConfigDuration("PAYMENT_TIMEOUT", 30*time.Minute),
		CallbackMaxTries: ConfigInt("CALLBACK_MAX_ATTEMPTS", 5),
		SweepSchedule:    ConfigDefault("PAYMENT_SWEEP_SCHEDULE", "*/5 * * * *"),
		RetrySchedule:    ConfigDefault("CALLBACK_RETRY_SCHEDULE", "*/5 * * * *"),
		ReceiptFolder:    ConfigDefault("RECEIPT_FOLDER", "storefront_receipts"),
		MediaFolder:      ConfigDefault("MEDIA_FOLDER", "storefront_media"),
	}
}
