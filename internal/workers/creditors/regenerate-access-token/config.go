// internal/workers/creditors/regenerate-access-token/config.go
package regenerateaccesstoken

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
	}
}
