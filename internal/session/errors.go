package session

import (
	"errors"
	"fmt"
)

var (
	ErrNotReady       = errors.New("session: transport not ready")
	ErrClosed         = errors.New("session: closed")
	ErrQueueFull      = errors.New("session: outbound queue full")
	ErrAlreadyStarted = errors.New("session: already started")
	ErrInvalidConfig  = errors.New("session: invalid config")
	ErrLogonRejected  = errors.New("session: logon rejected")

	ErrReservedTemplate = errors.New("session: template reserved for session control")
)

// LogonError: шлюз ответил на logon ненулевым кодом.
type LogonError struct {
	Code uint32
	Text string
}

func (e *LogonError) Error() string {
	if e.Text == "" {
		return fmt.Sprintf("session: logon rejected (code %d)", e.Code)
	}
	return fmt.Sprintf("session: logon rejected (code %d): %s", e.Code, e.Text)
}

func (e *LogonError) Is(target error) bool {
	return target == ErrLogonRejected
}

// DecodeError: входящий кадр не разобран и отброшен.
type DecodeError struct {
	Size int
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("session: drop undecodable frame (%d bytes): %v", e.Size, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
