package profile

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownEntity means a profile references a code with no catalog
	// entry or no regulator configuration.
	ErrUnknownEntity  = errors.New("unknown entity")
	ErrUnknownProfile = errors.New("unknown profile")
)

// ConfigError is a fatal profile problem detected at load or bootstrap.
type ConfigError struct {
	Profile string
	Code    string
	Reason  string
	Err     error
}

func (e *ConfigError) Error() string {
	msg := "profile " + e.Profile
	if e.Code != "" {
		msg += fmt.Sprintf(" entity %q", e.Code)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }
