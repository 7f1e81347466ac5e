package domain

import "errors"

var (
	// ErrInvalidCategory is returned for category tokens outside prefix, keyword and suffix.
	ErrInvalidCategory = errors.New("invalid rule category")

	// ErrEmptyRule is returned when a rule value is empty after trimming.
	ErrEmptyRule = errors.New("rule value must not be empty")

	// ErrPersistence wraps failures of the durable storage backend.
	// The mutation that triggered it was not applied.
	ErrPersistence = errors.New("failed to persist rule set")

	// ErrUnknownCommand is returned for command names the handler does not serve.
	ErrUnknownCommand = errors.New("unknown command")
)
