package entity

import "errors"

var (
	ErrForbidden       = errors.New("forbidden: access denied")
	ErrTaskNotFound    = errors.New("task not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrTitleRequired   = errors.New("title is required")
	ErrInvalidStatus   = errors.New("invalid task status")
	ErrInvalidUserData = errors.New("invalid user data")
	ErrEmailTaken      = errors.New("user with this email already exists")
	ErrBadCredentials  = errors.New("invalid email or password")
	ErrUserInactive    = errors.New("user is not active")
	ErrInvalidToken    = errors.New("invalid or expired token")
)
