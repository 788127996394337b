package config

type Config interface {
	EnvConfig
	SessionConfig
	ProgressConfig
	JobConfig
}

type EnvConfig interface {
	GetAPIBaseURL() string
	GetAppName() string
	GetDataFolder() string
	GetEnv() string
	GetLogLevel() string
}

type mainConfig struct {
	EnvVars
	Session
	Progress
	Jobs
}

func New() Config {
	return mainConfig{}
}
