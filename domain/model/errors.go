package model

import "errors"

var (
	ErrConfigInvalid  = errors.New("stack configuration invalid")
	ErrStackNotFound  = errors.New("stack not found")
	ErrStateLocked    = errors.New("stack state is locked by another operation")
	ErrSecretNotFound = errors.New("secret not found in stack state")
)
