package engine

import "errors"

var (
	// ErrEmit indicates a unit file or directory could not be written.
	ErrEmit = errors.New("failed to emit units")

	// ErrRegister indicates the enabling symlink could not be created.
	// Generate tolerates it.
	ErrRegister = errors.New("failed to register unit")

	// ErrAlreadyRegistered indicates the enabling symlink already exists
	// with the expected target, as left by an earlier run.
	ErrAlreadyRegistered = errors.New("unit already registered")

	// ErrNoOutputDir indicates a request without a normal output directory.
	ErrNoOutputDir = errors.New("no output directory")
)
