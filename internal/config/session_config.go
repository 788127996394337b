package config

import "time"

const defaultSessionMinutes = 10080

type SessionConfig interface {
	GetSessionWindow() time.Duration
	GetRefreshWindow() time.Duration
	GetRefreshTimeout() time.Duration
}

type Session struct{}

var _ SessionConfig = Session{}

// GetSessionWindow is added to "now" at every save to compute the access
// token expiry.
func (Session) GetSessionWindow() time.Duration {
	return time.Duration(GetEnvInt("SESSION_MINUTES", defaultSessionMinutes)) * time.Minute
}

// GetRefreshWindow is the refresh token lifetime. Unless
// SESSION_REFRESH_MINUTES is set it equals the session window, so both
// tokens share a single expiry instant.
func (s Session) GetRefreshWindow() time.Duration {
	minutes := GetEnvInt("SESSION_REFRESH_MINUTES", 0)
	if minutes <= 0 {
		return s.GetSessionWindow()
	}
	return time.Duration(minutes) * time.Minute
}

func (Session) GetRefreshTimeout() time.Duration {
	return GetEnvDuration("REFRESH_TIMEOUT", 10*time.Second)
}
