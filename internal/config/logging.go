package config

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// ParseLogLevel maps LOG_LEVEL values to logrus levels, defaulting to info
func ParseLogLevel(s string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

func SetLogLevel(level logrus.Level) {
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// UseTerminalFormatter switches logging to the colored single line format
func UseTerminalFormatter() {
	logrus.SetFormatter(NewTerminalFormatter())
}
