package ipc

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedVersion = errors.New("unsupported protocol version")
	ErrTruncatedFrame     = errors.New("truncated frame")
	ErrFrameTooLarge      = errors.New("frame too large")
	ErrBadMagic           = errors.New("bad frame magic")
	ErrNotRemote          = errors.New("request can not be sent to the server")
)

// CodecError is a malformed or truncated payload.
type CodecError struct {
	Op  string
	Err error
}

func (e *CodecError) Error() string { return fmt.Sprintf("ipc %s: %v", e.Op, e.Err) }
func (e *CodecError) Unwrap() error { return e.Err }

// TransportError is a socket bind, send or receive failure.
type TransportError struct {
	Op   string
	Addr string
	Err  error
}

func (e *TransportError) Error() string {
	if e.Addr == "" {
		return fmt.Sprintf("ipc %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("ipc %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
