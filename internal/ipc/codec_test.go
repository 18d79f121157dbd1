package ipc

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"

	"pomodoro/internal/command"
)

func TestRequestRoundTrip(t *testing.T) {
	t.Parallel()
	reqs := []command.Request{
		command.Create{},
		command.Create{Durations: command.Durations{Work: command.Minutes(25), Break: command.Minutes(5)}},
		command.Create{Durations: command.Durations{Work: command.Minutes(0)}},
		command.Queue{Durations: command.Durations{Default: true}},
		command.Queue{Durations: command.Durations{Break: command.Minutes(65535)}},
		command.Delete{ID: 0},
		command.Delete{ID: 9},
		command.Delete{All: true},
		command.List{},
		command.List{ShowPercentage: true},
		command.History{},
		command.History{ShouldClear: true},
		command.Test{},
	}
	for _, req := range reqs {
		b, err := Encode(Message{Request: req})
		if err != nil {
			t.Fatalf("encode %#v: %v", req, err)
		}
		got, err := Decode(b)
		if err != nil {
			t.Fatalf("decode %#v: %v", req, err)
		}
		if !reflect.DeepEqual(got.Request, req) {
			t.Fatalf("round trip = %#v, want %#v", got.Request, req)
		}
	}
}

func TestInternalAndResponseRoundTrip(t *testing.T) {
	t.Parallel()
	for _, in := range []Internal{Ping, Pong} {
		b, _ := Encode(Message{Internal: in})
		got, err := Decode(b)
		if err != nil || got.Internal != in {
			t.Fatalf("internal %d: got %+v err %v", in, got, err)
		}
	}
	lines := []string{"Notification (id: 1) created", "", "┌─┐"}
	b, _ := Encode(Message{Response: lines})
	got, err := Decode(b)
	if err != nil || !reflect.DeepEqual(got.Response, lines) {
		t.Fatalf("response: got %q err %v", got.Response, err)
	}
}

func TestEncodeRejectsConsoleRequests(t *testing.T) {
	t.Parallel()
	for _, req := range []command.Request{command.Exit{}, command.Clear{}, command.Help{}} {
		_, err := Encode(Message{Request: req})
		if !errors.Is(err, ErrNotRemote) {
			t.Fatalf("%s: err = %v", req.Name(), err)
		}
	}
}

func TestDecodeSkipsUnknownFields(t *testing.T) {
	t.Parallel()
	b, _ := Encode(Message{Request: command.Delete{ID: 3}})
	b = protowire.AppendTag(b, 99, protowire.BytesType)
	b = protowire.AppendString(b, "future")
	b = protowire.AppendTag(b, 100, protowire.VarintType)
	b = protowire.AppendVarint(b, 7)
	got, err := Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Request != (command.Delete{ID: 3}) {
		t.Fatalf("got %#v", got.Request)
	}
}

func TestDecodeErrors(t *testing.T) {
	t.Parallel()
	wrongVersion := protowire.AppendTag(nil, fieldVersion, protowire.VarintType)
	wrongVersion = protowire.AppendVarint(wrongVersion, 2)
	wrongVersion = protowire.AppendTag(wrongVersion, fieldInternal, protowire.VarintType)
	wrongVersion = protowire.AppendVarint(wrongVersion, uint64(Ping))

	valid, _ := Encode(Message{Request: command.List{}})

	badKind := protowire.AppendTag(nil, fieldKind, protowire.VarintType)
	badKind = protowire.AppendVarint(badKind, 42)
	unknownKind := protowire.AppendTag(nil, fieldVersion, protowire.VarintType)
	unknownKind = protowire.AppendVarint(unknownKind, Version)
	unknownKind = protowire.AppendTag(unknownKind, fieldRequest, protowire.BytesType)
	unknownKind = protowire.AppendBytes(unknownKind, badKind)

	cases := map[string][]byte{
		"garbage":      {0xff, 0xff, 0xff},
		"truncated":    valid[:len(valid)-1],
		"empty":        {},
		"unknown kind": unknownKind,
	}
	for name, b := range cases {
		_, err := Decode(b)
		var ce *CodecError
		if !errors.As(err, &ce) {
			t.Fatalf("%s: err = %v, want *CodecError", name, err)
		}
	}
	if _, err := Decode(wrongVersion); !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("version: err = %v", err)
	}
}

func TestChunksReassemble(t *testing.T) {
	t.Parallel()
	payload := bytes.Repeat([]byte("0123456789"), 1000)
	chunks := Chunks(payload)
	if len(chunks) < 5 {
		t.Fatalf("chunks = %d, want several", len(chunks))
	}
	for _, c := range chunks {
		if len(c) > MaxChunkSize {
			t.Fatalf("chunk of %d bytes", len(c))
		}
	}

	asm := NewAssembler()
	for _, c := range chunks {
		if _, done, err := asm.Feed("a", c); done || err != nil {
			t.Fatalf("early done=%v err=%v", done, err)
		}
	}
	got, done, err := asm.Feed("a", nil)
	if !done || err != nil {
		t.Fatalf("done=%v err=%v", done, err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: %d bytes vs %d", len(got), len(payload))
	}
	if asm.Pending() != 0 {
		t.Fatalf("buffer kept after terminator")
	}
}

func TestLargeResponseDecodesAfterChunking(t *testing.T) {
	t.Parallel()
	lines := []string{strings.Repeat("x", 7000), "tail"}
	b, _ := Encode(Message{Response: lines})
	asm := NewAssembler()
	for _, c := range Chunks(b) {
		asm.Feed("srv", c)
	}
	payload, _, err := asm.Feed("srv", nil)
	if err != nil {
		t.Fatalf("reassemble: %v", err)
	}
	got, err := Decode(payload)
	if err != nil || !reflect.DeepEqual(got.Response, lines) {
		t.Fatalf("decode: %v", err)
	}
}

func TestAssemblerFrameErrors(t *testing.T) {
	t.Parallel()
	asm := NewAssembler()

	frame := Chunks([]byte("hello"))[0]
	asm.Feed("short", frame[:len(frame)-2])
	if _, _, err := asm.Feed("short", nil); !errors.Is(err, ErrTruncatedFrame) {
		t.Fatalf("short: %v", err)
	}

	asm.Feed("long", append(append([]byte{}, frame...), 'x'))
	if _, _, err := asm.Feed("long", nil); !errors.Is(err, ErrTruncatedFrame) {
		t.Fatalf("long: %v", err)
	}

	if _, _, err := asm.Feed("none", nil); !errors.Is(err, ErrTruncatedFrame) {
		t.Fatalf("lone terminator: %v", err)
	}

	asm.Feed("magic", []byte("XX\x01a"))
	if _, _, err := asm.Feed("magic", nil); !errors.Is(err, ErrBadMagic) {
		t.Fatalf("magic: %v", err)
	}

	huge := protowire.AppendVarint([]byte("PM"), MaxFrameSize+1)
	asm.Feed("huge", huge)
	if _, _, err := asm.Feed("huge", nil); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("declared size: %v", err)
	}

	big := make([]byte, MaxChunkSize)
	for i := 0; i <= MaxFrameSize/MaxChunkSize+1; i++ {
		asm.Feed("flood", big)
	}
	if _, _, err := asm.Feed("flood", nil); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("flood: %v", err)
	}
}

func TestAssemblerKeepsSourcesApart(t *testing.T) {
	t.Parallel()
	asm := NewAssembler()
	a := Chunks([]byte("from a"))
	b := Chunks([]byte("from b"))
	asm.Feed("a", a[0])
	asm.Feed("b", b[0])
	gotB, _, err := asm.Feed("b", nil)
	if err != nil || string(gotB) != "from b" {
		t.Fatalf("b: %q %v", gotB, err)
	}
	gotA, _, err := asm.Feed("a", nil)
	if err != nil || string(gotA) != "from a" {
		t.Fatalf("a: %q %v", gotA, err)
	}
}
