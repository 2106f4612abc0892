package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

// Error implements repositories.RepositoryError for MongoDB backed repositories.
type Error struct {
	op          string
	err         error
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.op, e.err) }

func (e *Error) Unwrap() error { return e.err }

func (e *Error) IsNotFound() bool { return e.notFound }

func (e *Error) IsConflict() bool { return e.conflict }

func (e *Error) IsUnavailable() bool { return e.unavailable }

func notFound(op string, cause error) error {
	return &Error{op: op, err: cause, notFound: true}
}

func conflict(op string, cause error) error {
	return &Error{op: op, err: cause, conflict: true}
}

// wrap classifies driver errors. Context errors pass through untouched.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var repoErr *Error
	if errors.As(err, &repoErr) {
		return err
	}
	e := &Error{op: op, err: err}
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		e.notFound = true
	case mongo.IsDuplicateKeyError(err):
		e.conflict = true
	case mongo.IsNetworkError(err), mongo.IsTimeout(err), errors.Is(err, mongo.ErrClientDisconnected):
		e.unavailable = true
	}
	return e
}

var duplicateKeyCodes = []int{11000, 11001, 12582}

// isDuplicateKeyOn reports whether err is a duplicate key violation of the named index.
// Violations of other unique indexes, including _id, do not match.
func isDuplicateKeyOn(err error, index string) bool {
	var se mongo.ServerError
	if !errors.As(err, &se) {
		return false
	}
	for _, code := range duplicateKeyCodes {
		if se.HasErrorCodeWithMessage(code, "index: "+index+" ") {
			return true
		}
	}
	return false
}
