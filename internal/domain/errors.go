package domain

import (
	"errors"
	"fmt"
)

var (
	ErrBadRequest        = errors.New("bad request")
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrConflict          = errors.New("conflict")
	ErrUnsupportedKind   = errors.New("unsupported resource kind")
	ErrUnauthenticated   = errors.New("authentication required")
	ErrForbidden         = errors.New("forbidden")
	ErrContextConflict   = errors.New("actor context conflict")
	ErrAuditWriteFailure = errors.New("audit write failed")
)

// DeniedError is returned when the permission authority refuses an action.
type DeniedError struct {
	Kind     string
	Action   string
	Decision Decision
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%s %s.%s: %s", ErrForbidden, e.Kind, e.Action, e.Decision.Reason)
}

func (e *DeniedError) Unwrap() error {
	return ErrForbidden
}

// Message is the caller-facing text for a denial.
func (e *DeniedError) Message() string {
	switch e.Decision.Reason {
	case ReasonNotMember:
		return "you are not a member of this project"
	case ReasonMissingPermission:
		return fmt.Sprintf("missing required permission: '%s.%s'", e.Kind, e.Action)
	default:
		return "permission denied"
	}
}
