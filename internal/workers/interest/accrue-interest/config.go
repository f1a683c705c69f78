// internal/workers/interest/accrue-interest/config.go
package accrueinterest

import "time"

type Config struct {
	Timeout time.Duration
}

// The sweep visits every active loan, so it gets a longer budget than the
// single-loan workers.
func LoadConfig() *Config {
	return &Config{
		Timeout: 5 * time.Minute,
	}
}
