package config

type Config interface {
	EnvConfig
	GoogleConfig
	SessionConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetRedisAddr() string
	GetDefaultRedirectURI() string
	GetSubscriptionServiceURL() string
}

type mainConfig struct {
	EnvVars
	Google
	Session
}

func New() Config {
	return mainConfig{}
}
