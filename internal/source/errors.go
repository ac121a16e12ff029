package source

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSource is returned when a descriptor is neither a
	// credential table, a local vault reference, nor a SQL configuration.
	ErrInvalidSource = errors.New("invalid credential source")
)

// ConfigError reports a missing or invalid field in a SQL source
// configuration. It is raised before any connection attempt.
type ConfigError struct {
	Field string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("sql source configuration: missing required field %q", e.Field)
}
