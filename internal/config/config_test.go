package config_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-learnhub-client/internal/config"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c := config.New()

	require.Equal(t, "http://localhost:8000", c.GetAPIBaseURL())
	require.Equal(t, 10080*time.Minute, c.GetSessionWindow())
	require.Equal(t, c.GetSessionWindow(), c.GetRefreshWindow(), "refresh window defaults to the shared session window")
	require.Equal(t, 6, c.GetProgressStep())
	require.Equal(t, 250*time.Millisecond, c.GetProgressInterval())
	require.Equal(t, 90, c.GetProgressCeiling())
	require.Equal(t, 500*time.Millisecond, c.GetProgressFinishDelay())
	require.Equal(t, time.Second, c.GetPollInterval())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.example.com/")
	t.Setenv("SESSION_MINUTES", "30")
	t.Setenv("SESSION_REFRESH_MINUTES", "120")
	t.Setenv("JOB_POLL_INTERVAL", "1500ms")
	t.Setenv("PROGRESS_CEILING", "100")

	c := config.New()

	require.Equal(t, "https://api.example.com", c.GetAPIBaseURL())
	require.Equal(t, 30*time.Minute, c.GetSessionWindow())
	require.Equal(t, 2*time.Hour, c.GetRefreshWindow())
	require.Equal(t, 1500*time.Millisecond, c.GetPollInterval())
	require.Equal(t, 90, c.GetProgressCeiling(), "a ceiling of 100 is rejected")
}

func TestInvalidDurationFallsBack(t *testing.T) {
	t.Setenv("JOB_POLL_TIMEOUT", "soon")
	require.Equal(t, 10*time.Second, config.New().GetPollTimeout())
}
