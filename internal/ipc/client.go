package ipc

import (
	"context"
	"fmt"
	"time"

	"pomodoro/internal/command"
)

// DefaultRequestTimeout applies when Send's context has no deadline.
const DefaultRequestTimeout = 10 * time.Second

// Send delivers one request to the server and waits for its response.
// There are no retries.
func Send(ctx context.Context, addrs Addresses, req command.Request) ([]string, error) {
	if !command.Remote(req) {
		return nil, &CodecError{Op: "encode", Err: fmt.Errorf("%w: %s", ErrNotRemote, req.Name())}
	}
	b, err := Encode(Message{Request: req})
	if err != nil {
		return nil, err
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultRequestTimeout)
		defer cancel()
	}

	ep, err := bind(addrs.Client)
	if err != nil {
		return nil, err
	}
	defer ep.close()

	deadline, _ := ctx.Deadline()
	_ = ep.conn.SetReadDeadline(deadline)
	stop := ep.watchContext(ctx)
	defer stop()

	if err := ep.send(unixAddr(addrs.Server), b, time.Until(deadline)); err != nil {
		return nil, err
	}

	asm := NewAssembler()
	buf := make([]byte, recvBufSize)
	for {
		payload, _, err := ep.receive(ctx, asm, buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil, &TransportError{Op: "await response", Addr: addrs.Server, Err: ctx.Err()}
			}
			return nil, err
		}
		msg, err := Decode(payload)
		if err != nil {
			return nil, err
		}
		if msg.Internal != InternalNone || msg.Request != nil {
			continue
		}
		return msg.Response, nil
	}
}
