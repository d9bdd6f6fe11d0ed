package service

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already registered")
	ErrTaskNotDeletable   = errors.New("task cannot be deleted in its current status")
)
