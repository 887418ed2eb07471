package apperrors

import "errors"

// Error kinds surfaced verbatim to callers. Handlers map these to HTTP
// statuses; services wrap them with context via fmt.Errorf and %w.
var (
	ErrNotAuthorized   = errors.New("not authorized")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Domain-specific refinements. Each wraps one of the kinds above so that
// errors.Is(err, ErrConflict) etc. keeps working at the transport layer.
var (
	ErrAlreadyFriends   = wrap(ErrConflict, "already friends")
	ErrDuplicateRequest = wrap(ErrConflict, "friend request already sent")
	ErrUsernameTaken    = wrap(ErrConflict, "username already taken")
	ErrEmptyBody        = wrap(ErrInvalidArgument, "message body is empty")
	ErrInvalidChoice    = wrap(ErrInvalidArgument, "invalid response choice")
	ErrSelfRequest      = wrap(ErrInvalidArgument, "cannot friend yourself")
)

type wrapped struct {
	kind error
	msg  string
}

func wrap(kind error, msg string) error {
	return &wrapped{kind: kind, msg: msg}
}

func (e *wrapped) Error() string { return e.msg }

func (e *wrapped) Unwrap() error { return e.kind }
