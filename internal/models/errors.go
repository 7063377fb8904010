package models

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrProvider    = errors.New("flight provider failure")
	ErrPersistence = errors.New("persistence failure")
)

func Validationf(format string, args ...any) error {
	return errors.WithMessagef(ErrValidation, format, args...)
}

func NotFoundf(format string, args ...any) error {
	return errors.WithMessagef(ErrNotFound, format, args...)
}

// Persistence tags a storage error. Errors already carrying ErrNotFound or
// ErrValidation are returned as is.
func Persistence(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", msg, ErrPersistence, err)
}
