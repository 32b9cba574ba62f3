package config

import "time"

// SessionConfig holds the renewal timing knobs.
type SessionConfig interface {
	GetTickInterval() time.Duration
	GetRenewalLeadTime() time.Duration
	GetRetryBackoff() time.Duration
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetTickInterval() time.Duration {
	return GetDurationEnv("SESSION_TICK_INTERVAL", 60*time.Second)
}

func (Session) GetRenewalLeadTime() time.Duration {
	return GetDurationEnv("SESSION_RENEWAL_LEAD_TIME", 70*time.Second)
}

func (Session) GetRetryBackoff() time.Duration {
	return GetDurationEnv("SESSION_RETRY_BACKOFF", 5*time.Second)
}
