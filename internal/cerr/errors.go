package cerr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrAuth       = errors.New("authentication failed")
	ErrStorage    = errors.New("storage backend failure")
	ErrNotFound   = errors.New("not found")
)

func Validation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

func Auth(msg string) error {
	return fmt.Errorf("%w: %s", ErrAuth, msg)
}

func Storage(msg string, cause error) error {
	if cause != nil {
		return fmt.Errorf("%w: %s: %v", ErrStorage, msg, cause)
	}
	return fmt.Errorf("%w: %s", ErrStorage, msg)
}
