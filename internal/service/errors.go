package service

import "errors"

var (
	ErrUnauthorized = errors.New("not authenticated")
	ErrForbidden    = errors.New("access denied")

	ErrCredentialsRequired = errors.New("username and password required")
	ErrInvalidCredentials  = errors.New("invalid credentials")

	ErrMilestoneNotFound = errors.New("milestone not found")
	ErrMilestoneLocked   = errors.New("milestone not unlocked yet")
	ErrAlreadyUnlocked   = errors.New("milestone already unlocked")

	ErrInvalidItemType = errors.New("invalid content type")
	ErrTextRequired    = errors.New("text content is required")
	ErrFileRequired    = errors.New("a file is required for media content")
	ErrPayloadConflict = errors.New("provide either text or a file, not both")
	ErrUnsupportedFile = errors.New("invalid file type")
	ErrFileTooLarge    = errors.New("file exceeds upload limit")
)

// ErrorKind groups errors by how callers should treat them.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindInvalidInput
	KindConflict
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindInvalidInput:
		return "invalid_input"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Kind classifies err. Anything unrecognised is internal.
func Kind(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidCredentials):
		return KindUnauthorized
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrMilestoneLocked):
		return KindForbidden
	case errors.Is(err, ErrMilestoneNotFound):
		return KindNotFound
	case errors.Is(err, ErrAlreadyUnlocked):
		return KindConflict
	case errors.Is(err, ErrCredentialsRequired),
		errors.Is(err, ErrInvalidItemType),
		errors.Is(err, ErrTextRequired),
		errors.Is(err, ErrFileRequired),
		errors.Is(err, ErrPayloadConflict),
		errors.Is(err, ErrUnsupportedFile),
		errors.Is(err, ErrFileTooLarge):
		return KindInvalidInput
	default:
		return KindInternal
	}
}
