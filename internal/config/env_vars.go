package config

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	appNameVar  = "APP_NAME"
	logLevelVar = "LOG_LEVEL"
	envVar      = "ENV"
)

type EnvVars struct {
	src *source
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetAppName() string {
	return e.src.get(appNameVar, "Offline Auth")
}

func (e EnvVars) GetLogLevel() string {
	return e.src.get(logLevelVar, "info")
}

func (e EnvVars) GetEnv() string {
	return e.src.get(envVar, "DEV")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

// source resolves a setting from the environment, then the config file, then
// the default.
type source struct {
	file map[string]string
}

func (s *source) get(name, defaultValue string) string {
	if value := GetEnv(name, ""); value != "" {
		return value
	}
	if s != nil {
		if value := s.file[name]; value != "" {
			return value
		}
	}
	return defaultValue
}

func (s *source) duration(name string, defaultValue time.Duration) time.Duration {
	raw := s.get(name, "")
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Warn().Str("setting", name).Str("value", raw).Msg("invalid duration, using default")
		return defaultValue
	}
	return d
}

func (s *source) int(name string, defaultValue int) int {
	raw := s.get(name, "")
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.Warn().Str("setting", name).Str("value", raw).Msg("invalid integer, using default")
		return defaultValue
	}
	return n
}
