package ipc

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestEndpointCloseRemovesFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), ServerSocketName)
	ep, err := bind(path)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("socket file missing after bind: %v", err)
	}
	if err := ep.close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("socket file left after close: %v", err)
	}
	again, err := bind(path)
	if err != nil {
		t.Fatalf("rebind: %v", err)
	}
	_ = again.close()
}

func TestConcurrentSendsKeepFramesWhole(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src, err := bind(filepath.Join(dir, ServerSocketName))
	if err != nil {
		t.Fatal(err)
	}
	defer src.close()
	dst, err := bind(filepath.Join(dir, ClientSocketName))
	if err != nil {
		t.Fatal(err)
	}
	defer dst.close()

	const senders = 4
	size := 4*MaxChunkSize + 100
	var wg sync.WaitGroup
	for i := range senders {
		wg.Add(1)
		go func(fill byte) {
			defer wg.Done()
			if err := src.send(unixAddr(dst.path), bytes.Repeat([]byte{fill}, size), 2*time.Second); err != nil {
				t.Errorf("send %d: %v", fill, err)
			}
		}(byte('a' + i))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = dst.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	asm := NewAssembler()
	buf := make([]byte, recvBufSize)
	seen := map[byte]bool{}
	for range senders {
		payload, _, err := dst.receive(ctx, asm, buf)
		if err != nil {
			t.Fatalf("receive: %v", err)
		}
		if len(payload) != size {
			t.Fatalf("payload length = %d, want %d", len(payload), size)
		}
		fill := payload[0]
		if !bytes.Equal(payload, bytes.Repeat([]byte{fill}, size)) {
			t.Fatalf("frame %q mixed with another frame", fill)
		}
		seen[fill] = true
	}
	wg.Wait()
	if len(seen) != senders {
		t.Fatalf("distinct frames = %d, want %d", len(seen), senders)
	}
}
