package config

import "time"

type SessionConfig interface {
	GetCallbackStateTTL() time.Duration
	GetSessionTTL() time.Duration
	GetTokenLength() int
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetCallbackStateTTL() time.Duration {
	return 10 * time.Minute
}

func (Session) GetSessionTTL() time.Duration {
	return 7 * 24 * time.Hour // 7 days
}

func (Session) GetTokenLength() int {
	return 32 // 32 bytes = 256 bits
}
