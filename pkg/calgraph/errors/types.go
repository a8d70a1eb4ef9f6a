package errors

import (
	"errors"
	"fmt"
)

// Codes exposed to API clients in GraphQL error extensions.
const (
	CodeStorage    = "STORAGE"
	CodeNotFound   = "NOT_FOUND"
	CodeForbidden  = "FORBIDDEN"
	CodeDecode     = "DECODE"
	CodeBadRequest = "BAD_REQUEST"
	CodeInternal   = "INTERNAL"
)

// Sentinel errors for errors.Is checks against the typed errors below.
var (
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrValidation = errors.New("invalid input")
)

// StorageError is any failure from the persistence layer: connection loss,
// constraint violation, query error. It is never retried automatically.
type StorageError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

// Unwrap returns the driver error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Extensions implements the GraphQL error extensions hook.
func (e *StorageError) Extensions() map[string]any {
	return map[string]any{"code": CodeStorage}
}

// Storage wraps err as a StorageError for op. A nil err stays nil, and an
// err that already is a StorageError is returned unchanged.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *StorageError
	if errors.As(err, &existing) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// NotFoundError reports a missing record. For satellites this is a data
// integrity fault; for events it is a normal absent result.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found for event %s", e.Entity, e.ID)
}

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Extensions implements the GraphQL error extensions hook.
func (e *NotFoundError) Extensions() map[string]any {
	return map[string]any{"code": CodeNotFound, "entity": e.Entity}
}

// NotFound creates a NotFoundError for entity keyed by event id.
func NotFound(entity string, eventID int64) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: fmt.Sprint(eventID)}
}

// ForbiddenError reports a caller lacking the role an operation requires.
type ForbiddenError struct {
	Required string
	Reason   string
}

// Error implements the error interface.
func (e *ForbiddenError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("forbidden: requires role %s: %s", e.Required, e.Reason)
	}
	return fmt.Sprintf("forbidden: requires role %s", e.Required)
}

// Is matches ErrForbidden.
func (e *ForbiddenError) Is(target error) bool {
	return target == ErrForbidden
}

// Extensions implements the GraphQL error extensions hook.
func (e *ForbiddenError) Extensions() map[string]any {
	return map[string]any{"code": CodeForbidden}
}

// DecodeError reports a malformed payload crossing the publish/subscribe
// boundary, in either direction.
type DecodeError struct {
	Payload []byte
	Err     error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode notification (%d bytes): %v", len(e.Payload), e.Err)
}

// Unwrap returns the underlying codec error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Extensions implements the GraphQL error extensions hook.
func (e *DecodeError) Extensions() map[string]any {
	return map[string]any{"code": CodeDecode}
}

// ValidationError indicates malformed caller input, such as a non-numeric id.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Extensions implements the GraphQL error extensions hook.
func (e *ValidationError) Extensions() map[string]any {
	ext := map[string]any{"code": CodeBadRequest}
	if e.Field != "" {
		ext["field"] = e.Field
	}
	return ext
}

// Invalid creates a ValidationError.
func Invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Code returns the client-facing code for err.
func Code(err error) string {
	var (
		storageErr    *StorageError
		notFoundErr   *NotFoundError
		forbiddenErr  *ForbiddenError
		decodeErr     *DecodeError
		validationErr *ValidationError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validationErr):
		return CodeBadRequest
	case errors.As(err, &forbiddenErr):
		return CodeForbidden
	case errors.As(err, &notFoundErr):
		return CodeNotFound
	case errors.As(err, &decodeErr):
		return CodeDecode
	case errors.As(err, &storageErr):
		return CodeStorage
	default:
		return CodeInternal
	}
}
