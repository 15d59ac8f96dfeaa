package config

import (
	"fmt"
	"os"
)

const (
	portEnvVar    = "PORT"
	appNameVar    = "APP_NAME"
	baseURLVar    = "BASE_URL"
	redisAddrVar  = "REDIS_ADDR"
	redirectVar   = "DEFAULT_REDIRECT_URI"
	subServiceVar = "SUBSCRIPTION_SERVICE_URL"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if port != "" || port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Puku Auth")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

// GetBaseURL returns the public base URL of the authorization service
// (e.g., "https://auth.puku.sh"). Used to compute the Google redirect_uri.
func (EnvVars) GetBaseURL() string {
	return GetEnv(baseURLVar, "http://localhost:8080")
}

// GetRedisAddr returns the Redis address for the correlation store.
// An empty value selects the in-memory store.
func (EnvVars) GetRedisAddr() string {
	return GetEnv(redisAddrVar, "")
}

// GetDefaultRedirectURI is the custom-scheme URI the callback handler falls
// back to when the flow did not carry a caller-supplied callback.
func (EnvVars) GetDefaultRedirectURI() string {
	return GetEnv(redirectVar, "puku://puku.puku-editor/auth/callback")
}

// GetSubscriptionServiceURL is the endpoint user profiles are mirrored to
// after sign-in. Empty disables mirroring.
func (EnvVars) GetSubscriptionServiceURL() string {
	return GetEnv(subServiceVar, "")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
