package config

import "time"

const (
	sessionTimeoutVar   = "AUTH_SESSION_TIMEOUT"
	sessionWarningVar   = "AUTH_SESSION_WARNING"
	maxBackgroundVar    = "AUTH_MAX_BACKGROUND"
	refreshThresholdVar = "AUTH_REFRESH_THRESHOLD"
)

type SessionConfig interface {
	GetSessionTimeout() time.Duration
	GetSessionWarning() time.Duration
	GetMaxBackgroundTime() time.Duration
	GetRefreshThreshold() time.Duration
}

type Session struct {
	src *source
}

var _ SessionConfig = Session{}

func (s Session) GetSessionTimeout() time.Duration {
	return s.src.duration(sessionTimeoutVar, 8*time.Hour)
}

func (s Session) GetSessionWarning() time.Duration {
	return s.src.duration(sessionWarningVar, 5*time.Minute)
}

func (s Session) GetMaxBackgroundTime() time.Duration {
	return s.src.duration(maxBackgroundVar, 15*time.Minute)
}

func (s Session) GetRefreshThreshold() time.Duration {
	return s.src.duration(refreshThresholdVar, time.Hour)
}
