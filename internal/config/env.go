package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// envInt leaves dst unchanged when the variable is unset or not an integer.
func envInt(key string, dst *int) {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		*dst = n
	}
}

// checkDurations validates duration strings keyed by their toml field name,
// in the order given.
func checkDurations(fields ...[2]string) error {
	for _, f := range fields {
		if _, err := time.ParseDuration(f[1]); err != nil {
			return fmt.Errorf("invalid %s: %w", f[0], err)
		}
	}
	return nil
}

func duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
