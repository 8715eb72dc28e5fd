package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrUnknownExchange = errors.New("unknown exchange")
	ErrBadInterval     = errors.New("settlement interval must be positive")
	ErrWSDisconnect    = errors.New("websocket disconnected")
)
