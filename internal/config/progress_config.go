package config

import "time"

type ProgressConfig interface {
	GetProgressStep() int
	GetProgressInterval() time.Duration
	GetProgressCeiling() int
	GetProgressFinishDelay() time.Duration
}

type Progress struct{}

var _ ProgressConfig = Progress{}

func (Progress) GetProgressStep() int {
	return GetEnvInt("PROGRESS_STEP", 6)
}

func (Progress) GetProgressInterval() time.Duration {
	return GetEnvDuration("PROGRESS_INTERVAL", 250*time.Millisecond)
}

// GetProgressCeiling must stay below 100; the simulated ramp never reaches it.
func (Progress) GetProgressCeiling() int {
	ceiling := GetEnvInt("PROGRESS_CEILING", 90)
	if ceiling <= 1 || ceiling >= 100 {
		return 90
	}
	return ceiling
}

func (Progress) GetProgressFinishDelay() time.Duration {
	return GetEnvDuration("PROGRESS_FINISH_DELAY", 500*time.Millisecond)
}
