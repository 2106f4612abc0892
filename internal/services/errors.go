package services

import (
	"errors"
	"fmt"

	"github.com/Roohan-gm/shopblizz-backend/internal/repositories"
)

var (
	// ErrValidation signals malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates the referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a uniqueness violation or concurrent modification.
	ErrConflict = errors.New("conflict")
	// ErrInvalidTransition indicates an order lifecycle change that is not allowed.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNumberGenerationExhausted is returned when every order number attempt collided.
	ErrNumberGenerationExhausted = errors.New("order number generation exhausted")
	// ErrDependencyFailure indicates a storage or media backend failed.
	ErrDependencyFailure = errors.New("dependency failure")
)

// ValidationError describes which input field was rejected.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ErrValidation.Error()
	}
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Field, e.Message)
}

// Is reports ValidationError as ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func invalidTransition(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidTransition, fmt.Sprintf(format, args...))
}

func mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %w", ErrConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %w", ErrDependencyFailure, err)
		}
	}
	// mutation callbacks return service errors that are already classified
	for _, known := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrInvalidTransition} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrDependencyFailure, err)
}
