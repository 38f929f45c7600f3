package models

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrAlreadyExists      = errors.New("already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMissingPermission  = errors.New("api key is missing a required permission")
	ErrNotGuildMember     = errors.New("account is not a member of the guild")
	ErrTokenInvalid       = errors.New("api key was rejected by the gw2 api")
)
