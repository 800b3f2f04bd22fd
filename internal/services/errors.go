package services

import "errors"

// Service-level sentinel errors. Handlers translate these into API errors.
var (
	// Input discovery errors
	ErrNoInputFiles  = errors.New("no panel input files found")
	ErrInputNotFound = errors.New("panel input file not found")

	// Result errors
	ErrResultsNotAvailable = errors.New("analysis results not available")
	ErrFileNotFound        = errors.New("file not found")
	ErrInvalidFileType     = errors.New("invalid file type")

	// Operation errors
	ErrOperationNotFound   = errors.New("operation not found")
	ErrOperationNotRunning = errors.New("operation not running")

	// General errors
	ErrInvalidInput = errors.New("invalid input")
)
