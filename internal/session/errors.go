package session

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionPaused   = errors.New("session is paused")
	ErrSessionOver     = errors.New("session is over")
)
