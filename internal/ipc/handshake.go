package ipc

import (
	"context"
	"errors"
	"time"

	logx "pomodoro/pkg/logx"
)

// Status is the outcome of the singleton handshake.
type Status int

const (
	Free Status = iota
	Running
)

func (s Status) String() string {
	if s == Running {
		return "running"
	}
	return "free"
}

const pingWriteTimeout = 500 * time.Millisecond

// Detect asks whether a server already owns addrs. It returns Running as
// soon as a Pong arrives. Free is only returned after timeout has passed
// with no answer, even when the Ping could not be sent.
func Detect(ctx context.Context, addrs Addresses, timeout time.Duration, log logx.Logger) (Status, error) {
	log = log.With(logx.String("comp", "ipc"))
	ep, err := bind(addrs.Client)
	if err != nil {
		return Free, err
	}
	defer ep.close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	deadline, _ := ctx.Deadline()
	_ = ep.conn.SetReadDeadline(deadline)
	stop := ep.watchContext(ctx)
	defer stop()

	ping, err := Encode(Message{Internal: Ping})
	if err != nil {
		return Free, err
	}
	if err := ep.send(unixAddr(addrs.Server), ping, pingWriteTimeout); err != nil {
		log.Debug("ping not delivered", logx.Err(err))
		<-ctx.Done()
		return Free, nil
	}

	asm := NewAssembler()
	buf := make([]byte, recvBufSize)
	for {
		payload, _, err := ep.receive(ctx, asm, buf)
		if err != nil {
			var ce *CodecError
			if errors.As(err, &ce) {
				continue
			}
			// Deadline passed or the read failed; either way wait out the window.
			<-ctx.Done()
			return Free, nil
		}
		msg, err := Decode(payload)
		if err == nil && msg.Internal == Pong {
			return Running, nil
		}
	}
}
