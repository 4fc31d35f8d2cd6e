package config

import "errors"

var (
	// ErrEmptyPath is returned by Load for an empty path.
	ErrEmptyPath = errors.New("config: empty path")

	// ErrUnsupportedFormat is returned for formats other than YAML and JSON.
	ErrUnsupportedFormat = errors.New("config: unsupported format")

	// ErrLoadFailed wraps file read errors.
	ErrLoadFailed = errors.New("config: load failed")

	// ErrParseFailed wraps parser and decoding errors.
	ErrParseFailed = errors.New("config: parse failed")

	// ErrMissingEnv is returned when a ${VAR} reference has no value.
	ErrMissingEnv = errors.New("config: missing environment variables")

	// ErrInvalidConfig is returned by Validate.
	ErrInvalidConfig = errors.New("config: invalid configuration")
)
