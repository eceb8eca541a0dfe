package config

import (
	"time"
)

type Limits struct {
	MaxRetries   int             `yaml:"max_retries" validate:"min=0,max=10"`
	RetryBackoff time.Duration   `yaml:"retry_backoff" validate:"min=0,max=1m"`
	RateLimit    RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" validate:"required,min=1,max=1000"`
	BurstSize         int `yaml:"burst_size" validate:"required,min=1,max=100"`
}

func DefaultLimits() Limits {
	return Limits{
		MaxRetries:   2,
		RetryBackoff: time.Second,
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 30,
			BurstSize:         5,
		},
	}
}
