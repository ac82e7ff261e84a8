package model

import "errors"

var (
	// Authentication
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrMalformedClaims    = errors.New("malformed token claims")

	// Users
	ErrUsernameAlreadyExists = errors.New("username already exists")
	ErrItemNotFound          = errors.New("item not found")
	ErrNotFound              = errors.New("not found")
	ErrForbidden             = errors.New("forbidden")

	// Remote user API
	ErrAPIError = errors.New("remote api error")

	// Repository level, translated by the services
	ErrUserNotFound  = errors.New("user not found")
	ErrGroupNotFound = errors.New("group not found")
)
