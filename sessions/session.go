package sessions

import (
	"strconv"
	"time"
)

// Persisted keys. The layout matches what the web client keeps in
// localStorage so both can share a store.
const (
	AccessTokenKey      = "accessToken"
	RefreshTokenKey     = "refreshToken"
	AccessExpiresAtKey  = "accessTokenExpiresAt"
	RefreshExpiresAtKey = "refreshTokenExpiresAt"
)

// Keys lists every persisted session field.
var Keys = []string{AccessTokenKey, RefreshTokenKey, AccessExpiresAtKey, RefreshExpiresAtKey}

// Session is the client's persisted credential pair.
// Two validity notions:
// 1. access-valid  - access token present and now < AccessExpiresAt
// 2. refresh-valid - refresh token present and now < RefreshExpiresAt
type Session struct {
	AccessToken      string    // Bearer credential presented on each request
	RefreshToken     string    // Exchanged for a new pair at /auth/refresh
	AccessExpiresAt  time.Time // Client-computed expiry (zero when absent)
	RefreshExpiresAt time.Time // Client-computed expiry (zero when absent)
}

func (s Session) AccessValid(now time.Time) bool {
	return s.AccessToken != "" && now.Before(s.AccessExpiresAt)
}

func (s Session) RefreshValid(now time.Time) bool {
	return s.RefreshToken != "" && now.Before(s.RefreshExpiresAt)
}

func (s Session) Authenticated(now time.Time) bool {
	return s.AccessValid(now) || s.RefreshValid(now)
}

func fromFields(fields map[string]string) Session {
	return Session{
		AccessToken:      fields[AccessTokenKey],
		RefreshToken:     fields[RefreshTokenKey],
		AccessExpiresAt:  parseMillis(fields[AccessExpiresAtKey]),
		RefreshExpiresAt: parseMillis(fields[RefreshExpiresAtKey]),
	}
}

// Expiry instants are stored as decimal Unix milliseconds. Anything
// unparseable reads as the zero time, which is always expired.
func parseMillis(raw string) time.Time {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func formatMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
