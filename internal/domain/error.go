package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound          = errors.New("download not found")
	ErrForbidden         = errors.New("download belongs to another session")
	ErrInvalidURL        = errors.New("invalid or missing URL")
	ErrInvalidTransition = errors.New("invalid download status transition")
	ErrNotActive         = errors.New("download is not active")
	ErrCrypto            = errors.New("credential decryption failed")
)
