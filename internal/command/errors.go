package command

import (
	"errors"
	"fmt"
)

// ErrNoFreeID means every notification id is held by a live row.
var ErrNoFreeID = errors.New("no free notification id")

// UsageError is a malformed or rejected request. Nothing has been mutated
// when one is returned.
type UsageError struct {
	Command string
	Msg     string
	Err     error
}

func (e *UsageError) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Command == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Command, msg)
}

func (e *UsageError) Unwrap() error { return e.Err }

func usagef(cmd, format string, args ...any) error {
	return &UsageError{Command: cmd, Msg: fmt.Sprintf(format, args...)}
}
