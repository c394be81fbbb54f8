package config

import "fmt"

// ConfigurationError reports rule or personality data that could not be
// loaded. Callers log it and continue with defaults.
type ConfigurationError struct {
	What string // "rules" or "personality"
	Path string
	Err  error
}

func (e *ConfigurationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.What, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.What, e.Path, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
