package config

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

func SetupLogger() {
	logrus.SetOutput(os.Stdout)

	if strings.EqualFold(Config("LOG_FORMAT"), "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05"})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
	}

	level, err := logrus.ParseLevel(ConfigDefault("LOG_LEVEL", "info"))
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}
