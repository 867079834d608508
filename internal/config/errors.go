package config

import (
	"errors"
	"fmt"
)

// Sentinel errors for configuration problems
var (
	// ErrNoConfig indicates no configuration file was given
	ErrNoConfig = errors.New("no configuration file given")

	// ErrMissingKey indicates a required key has no value
	ErrMissingKey = errors.New("required key is missing")

	// ErrInvalidValue indicates a key has an unusable value
	ErrInvalidValue = errors.New("invalid value")

	// ErrMalformed indicates a configuration file could not be parsed
	ErrMalformed = errors.New("malformed configuration file")
)

// Error describes a configuration problem with the key and file involved,
// when known.
type Error struct {
	Key  string
	File string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.File != "" && e.Key != "":
		return fmt.Sprintf("config %s: %s: %v", e.File, e.Key, e.Err)
	case e.File != "":
		return fmt.Sprintf("config %s: %v", e.File, e.Err)
	case e.Key != "":
		return fmt.Sprintf("config: %s: %v", e.Key, e.Err)
	default:
		return fmt.Sprintf("config: %v", e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func missing(key string) error {
	return &Error{Key: key, Err: ErrMissingKey}
}

func invalid(key, format string, args ...any) error {
	return &Error{Key: key, Err: fmt.Errorf("%w: %s", ErrInvalidValue, fmt.Sprintf(format, args...))}
}
