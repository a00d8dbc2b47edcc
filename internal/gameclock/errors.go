package gameclock

import "errors"

var (
	ErrUnknownSession    = errors.New("unknown_session")
	ErrSessionFinished   = errors.New("session_finished")
	ErrNotRegistered     = errors.New("session_not_registered")
	ErrInvalidTimeConfig = errors.New("invalid_time_config")
)
