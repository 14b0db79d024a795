package models

import "errors"

var (
	// ErrNotFound means a tag or image is absent. It is a normal outcome, not a failure.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned before any I/O for blank keys or bad fields.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTransientIO wraps store or corpus I/O failures that a later trigger may retry.
	ErrTransientIO = errors.New("transient I/O failure")

	// ErrRegistration means an image could not be registered as a trackable target.
	ErrRegistration = errors.New("image registration failed")
)
