package ipc

import (
	"bytes"
	"sync"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	// MaxChunkSize bounds one datagram of a frame.
	MaxChunkSize = 2048
	// MaxFrameSize bounds a reassembled payload.
	MaxFrameSize = 1 << 20

	recvBufSize = 4096

	maxVarintLen = 10
)

var magic = []byte("PM")

// Chunks frames payload and splits it into datagrams. The caller sends each
// chunk in order and then one zero-length datagram as the terminator.
func Chunks(payload []byte) [][]byte {
	frame := make([]byte, 0, len(magic)+maxVarintLen+len(payload))
	frame = append(frame, magic...)
	frame = protowire.AppendVarint(frame, uint64(len(payload)))
	frame = append(frame, payload...)

	out := make([][]byte, 0, len(frame)/MaxChunkSize+1)
	for len(frame) > 0 {
		n := min(len(frame), MaxChunkSize)
		out = append(out, frame[:n])
		frame = frame[n:]
	}
	return out
}

// Assembler rebuilds frames from datagrams, one buffer per source address.
type Assembler struct {
	mu   sync.Mutex
	bufs map[string]*pending
}

type pending struct {
	buf      bytes.Buffer
	overflow bool
}

func NewAssembler() *Assembler {
	return &Assembler{bufs: map[string]*pending{}}
}

// Feed adds one datagram from src. On the terminator it returns the payload
// and done=true, or the frame error. The buffer for src is reset either way.
func (a *Assembler) Feed(src string, datagram []byte) (payload []byte, done bool, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p := a.bufs[src]
	if len(datagram) > 0 {
		if p == nil {
			p = &pending{}
			a.bufs[src] = p
		}
		if p.overflow {
			return nil, false, nil
		}
		if p.buf.Len()+len(datagram) > MaxFrameSize+len(magic)+maxVarintLen {
			p.overflow = true
			p.buf.Reset()
			return nil, false, nil
		}
		p.buf.Write(datagram)
		return nil, false, nil
	}

	delete(a.bufs, src)
	if p == nil {
		return nil, true, ErrTruncatedFrame
	}
	if p.overflow {
		return nil, true, ErrFrameTooLarge
	}
	payload, err = parseFrame(p.buf.Bytes())
	return payload, true, err
}

// Pending reports how many sources have a partial frame.
func (a *Assembler) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.bufs)
}

func parseFrame(b []byte) ([]byte, error) {
	if len(b) < len(magic) {
		return nil, ErrTruncatedFrame
	}
	if !bytes.Equal(b[:len(magic)], magic) {
		return nil, ErrBadMagic
	}
	b = b[len(magic):]
	size, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return nil, ErrTruncatedFrame
	}
	if size > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	b = b[n:]
	if uint64(len(b)) != size {
		return nil, ErrTruncatedFrame
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}
