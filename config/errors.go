package config

import "errors"

var (
	// ErrInvalidConfig wraps every validation failure.
	ErrInvalidConfig = errors.New("config: invalid configuration")

	// ErrInvalidEnv indicates an environment variable that does not parse.
	ErrInvalidEnv = errors.New("config: invalid environment variable")
)
