package models

import "errors"

// Domain errors surfaced by services. Handlers map these onto HTTP statuses;
// anything unlisted is an internal failure.
var (
	ErrNotFound           = errors.New("resource not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrSelfExchange       = errors.New("cannot record an exchange with yourself")
	ErrInvalidDirection   = errors.New("direction must be provided or received")
	ErrInvalidCategory    = errors.New("invalid exchange category")
	ErrNonPositiveAmount  = errors.New("pebs amount must be positive")
	ErrNotCounterpart     = errors.New("only the counterpart may confirm this exchange")
	ErrAlreadyConfirmed   = errors.New("exchange is already confirmed")
	ErrNotRecipient       = errors.New("notification belongs to another user")
	ErrNotInitiator       = errors.New("only the initiator may change this activity")
	ErrInvalidTransition  = errors.New("invalid activity status transition")
	ErrInvalidActivity    = errors.New("invalid activity type")
	ErrInvalidResponse    = errors.New("invalid response type")
	ErrActivityNotVisible = errors.New("activity is not visible to this user")
	ErrUsernameTaken      = errors.New("username is already taken")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
