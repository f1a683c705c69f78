// internal/workers/loans/record-manual-accrual/config.go
package recordmanualaccrual

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 15 * time.Second,
	}
}
