package ipc

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	logx "pomodoro/pkg/logx"
)

const (
	ServerSocketName = "pomodoro-server.sock"
	ClientSocketName = "pomodoro-client.sock"
)

// Addresses are the two well-known socket paths of one installation.
type Addresses struct {
	Server string
	Client string
}

// DefaultAddresses roots both sockets in dir, or os.TempDir() when dir is empty.
func DefaultAddresses(dir string) Addresses {
	if dir == "" {
		dir = os.TempDir()
	}
	return Addresses{
		Server: filepath.Join(dir, ServerSocketName),
		Client: filepath.Join(dir, ClientSocketName),
	}
}

func unixAddr(path string) *net.UnixAddr { return &net.UnixAddr{Name: path, Net: "unixgram"} }

// endpoint is a bound datagram socket that removes its file on close.
type endpoint struct {
	conn *net.UnixConn
	path string

	// wmu keeps the chunks and write deadline of one frame together.
	wmu sync.Mutex
}

func bind(path string) (*endpoint, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, &TransportError{Op: "remove stale socket", Addr: path, Err: err}
	}
	conn, err := net.ListenUnixgram("unixgram", unixAddr(path))
	if err != nil {
		return nil, &TransportError{Op: "bind", Addr: path, Err: err}
	}
	return &endpoint{conn: conn, path: path}, nil
}

func (e *endpoint) close() error {
	err := e.conn.Close()
	if rerr := os.Remove(e.path); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
		err = errors.Join(err, rerr)
	}
	return err
}

// send writes payload as a framed sequence of datagrams to dst.
func (e *endpoint) send(dst *net.UnixAddr, payload []byte, timeout time.Duration) error {
	e.wmu.Lock()
	defer e.wmu.Unlock()
	if timeout > 0 {
		_ = e.conn.SetWriteDeadline(time.Now().Add(timeout))
		defer e.conn.SetWriteDeadline(time.Time{})
	}
	for _, chunk := range Chunks(payload) {
		if _, err := e.conn.WriteToUnix(chunk, dst); err != nil {
			return &TransportError{Op: "send", Addr: dst.Name, Err: err}
		}
	}
	if _, err := e.conn.WriteToUnix(nil, dst); err != nil {
		return &TransportError{Op: "send", Addr: dst.Name, Err: err}
	}
	return nil
}

// receive reads datagrams until one complete frame arrives from any source,
// ctx ends, or the read deadline passes. Frame errors are returned with
// the source so callers may keep reading.
func (e *endpoint) receive(ctx context.Context, asm *Assembler, buf []byte) ([]byte, *net.UnixAddr, error) {
	for {
		n, src, err := e.conn.ReadFromUnix(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			return nil, nil, &TransportError{Op: "receive", Addr: e.path, Err: err}
		}
		key := ""
		if src != nil {
			key = src.Name
		}
		payload, done, ferr := asm.Feed(key, buf[:n])
		if !done {
			continue
		}
		if ferr != nil {
			return nil, src, &CodecError{Op: "reassemble", Err: ferr}
		}
		return payload, src, nil
	}
}

// watchContext closes early reads when ctx ends.
func (e *endpoint) watchContext(ctx context.Context) (stop func() bool) {
	return context.AfterFunc(ctx, func() {
		_ = e.conn.SetReadDeadline(time.Now())
	})
}

func logSend(log logx.Logger, err error, dst string) {
	if err != nil {
		log.Warn("ipc send failed", logx.String("dst", dst), logx.Err(err))
	}
}
