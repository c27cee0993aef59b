package service

import "errors"

// Validation errors.  Their messages are shown to the caller verbatim.
var (
	ErrEmailRegistered   = errors.New("Email already registered")
	ErrFlatRegistered    = errors.New("This flat is already registered")
	ErrInvalidInvitation = errors.New("Invalid or expired invitation")
	ErrEmailTaken        = errors.New("email is already in use")
	ErrWeakPassword      = errors.New("password must be at least 8 characters")
	ErrInvalidEmail      = errors.New("invalid email address")
	ErrInvalidStatus     = errors.New("invalid access status")
)

// Authentication errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotConfirmed  = errors.New("email not confirmed")
	ErrAccountSuspended   = errors.New("account suspended")
	ErrInvalidCode        = errors.New("invalid or expired code")
	ErrInvalidRefresh     = errors.New("invalid refresh token")
	ErrNoRole             = errors.New("no role assigned")
)

var (
	ErrForbidden     = errors.New("forbidden")
	ErrNotFound      = errors.New("not found")
	ErrVisitorState  = errors.New("visitor is not in a state that allows this action")
	ErrAlreadyJoined = errors.New("member already accepted the invitation")
)

// FieldError reports missing or malformed input fields.
type FieldError struct {
	Fields []string
}

func (e *FieldError) Error() string {
	if len(e.Fields) == 1 {
		return e.Fields[0] + " is required"
	}
	msg := "missing required fields: "
	for i, f := range e.Fields {
		if i > 0 {
			msg += ", "
		}
		msg += f
	}
	return msg
}

// required returns a *FieldError naming every empty value, or nil.
func required(pairs ...string) error {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			missing = append(missing, pairs[i])
		}
	}
	if len(missing) > 0 {
		return &FieldError{Fields: missing}
	}
	return nil
}
