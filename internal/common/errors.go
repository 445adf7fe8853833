package common

import (
	"errors"
	"fmt"

	"reviewdesk/internal/models"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrProfileNotFound = errors.New("profile not found")
	ErrAccessDenied    = errors.New("access denied")
	ErrTenantRequired  = errors.New("tenant_id is required")
	ErrNotFound        = errors.New("resource not found")
	ErrConflict        = errors.New("resource already exists")
)

// InvitationError is returned when an invitation cannot be redeemed.
type InvitationError struct {
	Kind models.InvitationState
}

var (
	ErrInvitationExpired      = &InvitationError{Kind: models.InvitationExpired}
	ErrInvitationAlreadyUsed  = &InvitationError{Kind: models.InvitationAlreadyUsed}
	ErrInvitationInvalidToken = &InvitationError{Kind: models.InvitationInvalidToken}
)

func (e *InvitationError) Error() string {
	return "invitation " + string(e.Kind)
}

// Is matches any InvitationError of the same kind.
func (e *InvitationError) Is(target error) bool {
	t, ok := target.(*InvitationError)
	return ok && t.Kind == e.Kind
}

// UserMessage is the text shown to the invitee.
func (e *InvitationError) UserMessage() string {
	switch e.Kind {
	case models.InvitationExpired:
		return "This invitation has expired. Please request a new invitation."
	case models.InvitationAlreadyUsed:
		return "This invitation has already been used. Sign in, or request a new invitation."
	default:
		return "This invitation link is not valid. Please request a new invitation."
	}
}

// TransportError wraps a failure to reach the database or the auth provider.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError returns nil when err is nil.
func NewTransportError(op string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Op: op, Err: err}
}

// IsTransport reports whether err is, or wraps, a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// AsInvitationError unwraps an InvitationError, if any.
func AsInvitationError(err error) (*InvitationError, bool) {
	var ie *InvitationError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}
