package config

import "time"

type JobConfig interface {
	GetPollInterval() time.Duration
	GetPollTimeout() time.Duration
	GetStartTimeout() time.Duration
}

type Jobs struct{}

var _ JobConfig = Jobs{}

func (Jobs) GetPollInterval() time.Duration {
	return GetEnvDuration("JOB_POLL_INTERVAL", time.Second)
}

func (Jobs) GetPollTimeout() time.Duration {
	return GetEnvDuration("JOB_POLL_TIMEOUT", 10*time.Second)
}

func (Jobs) GetStartTimeout() time.Duration {
	return GetEnvDuration("JOB_START_TIMEOUT", 10*time.Second)
}
