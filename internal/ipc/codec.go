package ipc

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"pomodoro/internal/command"
)

// Version is written into every envelope.
const Version = 1

// Internal marks handshake envelopes that never reach the dispatcher.
type Internal uint64

const (
	InternalNone Internal = iota
	Ping
	Pong
)

// Message is one decoded envelope. Exactly one of Internal, Request and
// Response is set.
type Message struct {
	Internal Internal
	Request  command.Request
	Response []string
}

// envelope fields
const (
	fieldVersion  protowire.Number = 1
	fieldRequest  protowire.Number = 2
	fieldInternal protowire.Number = 3
	fieldResponse protowire.Number = 4
)

// request fields
const (
	fieldKind           protowire.Number = 1
	fieldWork           protowire.Number = 2
	fieldBreak          protowire.Number = 3
	fieldID             protowire.Number = 4
	fieldAll            protowire.Number = 5
	fieldShowPercentage protowire.Number = 6
	fieldShouldClear    protowire.Number = 7
	fieldDefault        protowire.Number = 8
)

const fieldLine protowire.Number = 1

type kind uint64

const (
	kindCreate kind = iota + 1
	kindQueue
	kindDelete
	kindList
	kindTest
	kindHistory
)

// Encode serializes m. Console-only requests give ErrNotRemote.
func Encode(m Message) ([]byte, error) {
	b := protowire.AppendTag(nil, fieldVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, Version)
	switch {
	case m.Internal != InternalNone:
		b = protowire.AppendTag(b, fieldInternal, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Internal))
	case m.Request != nil:
		req, err := encodeRequest(m.Request)
		if err != nil {
			return nil, err
		}
		b = protowire.AppendTag(b, fieldRequest, protowire.BytesType)
		b = protowire.AppendBytes(b, req)
	default:
		b = protowire.AppendTag(b, fieldResponse, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeResponse(m.Response))
	}
	return b, nil
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

func appendMinutes(b []byte, num protowire.Number, v *uint16) []byte {
	if v == nil {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(*v))
}

func encodeRequest(r command.Request) ([]byte, error) {
	var b []byte
	putKind := func(k kind) {
		b = protowire.AppendTag(b, fieldKind, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(k))
	}
	switch r := r.(type) {
	case command.Create:
		putKind(kindCreate)
		b = appendDurations(b, r.Durations)
	case command.Queue:
		putKind(kindQueue)
		b = appendDurations(b, r.Durations)
	case command.Delete:
		putKind(kindDelete)
		b = protowire.AppendTag(b, fieldID, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(r.ID))
		b = appendBool(b, fieldAll, r.All)
	case command.List:
		putKind(kindList)
		b = appendBool(b, fieldShowPercentage, r.ShowPercentage)
	case command.Test:
		putKind(kindTest)
	case command.History:
		putKind(kindHistory)
		b = appendBool(b, fieldShouldClear, r.ShouldClear)
	default:
		return nil, &CodecError{Op: "encode", Err: fmt.Errorf("%w: %s", ErrNotRemote, r.Name())}
	}
	return b, nil
}

func appendDurations(b []byte, d command.Durations) []byte {
	b = appendMinutes(b, fieldWork, d.Work)
	b = appendMinutes(b, fieldBreak, d.Break)
	return appendBool(b, fieldDefault, d.Default)
}

func encodeResponse(lines []string) []byte {
	var b []byte
	for _, l := range lines {
		b = protowire.AppendTag(b, fieldLine, protowire.BytesType)
		b = protowire.AppendString(b, l)
	}
	return b
}

// walk visits every field in b. Fields fn leaves unconsumed (returning 0)
// are skipped, which is how unknown fields are ignored.
func walk(b []byte, fn func(num protowire.Number, typ protowire.Type, v []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		used, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if used == 0 {
			used = protowire.ConsumeFieldValue(num, typ, b)
		}
		if used < 0 {
			return protowire.ParseError(used)
		}
		b = b[used:]
	}
	return nil
}

func consumeVarint(typ protowire.Type, b []byte, out *uint64) (int, error) {
	if typ != protowire.VarintType {
		return 0, fmt.Errorf("want varint, got wire type %d", typ)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*out = v
	return n, nil
}

func consumeBytes(typ protowire.Type, b []byte, out *[]byte) (int, error) {
	if typ != protowire.BytesType {
		return 0, fmt.Errorf("want bytes, got wire type %d", typ)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*out = v
	return n, nil
}

// Decode parses an envelope.
func Decode(b []byte) (Message, error) {
	var (
		version         uint64
		internal        uint64
		req, resp       []byte
		hasReq, hasResp bool
	)
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case fieldVersion:
			return consumeVarint(typ, v, &version)
		case fieldInternal:
			return consumeVarint(typ, v, &internal)
		case fieldRequest:
			hasReq = true
			return consumeBytes(typ, v, &req)
		case fieldResponse:
			hasResp = true
			return consumeBytes(typ, v, &resp)
		}
		return 0, nil
	})
	if err != nil {
		return Message{}, &CodecError{Op: "decode", Err: err}
	}
	if version != Version {
		return Message{}, &CodecError{Op: "decode", Err: fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)}
	}

	switch {
	case internal != 0:
		if Internal(internal) != Ping && Internal(internal) != Pong {
			return Message{}, &CodecError{Op: "decode", Err: fmt.Errorf("unknown internal kind %d", internal)}
		}
		return Message{Internal: Internal(internal)}, nil
	case hasReq:
		r, err := decodeRequest(req)
		if err != nil {
			return Message{}, &CodecError{Op: "decode request", Err: err}
		}
		return Message{Request: r}, nil
	case hasResp:
		lines, err := decodeResponse(resp)
		if err != nil {
			return Message{}, &CodecError{Op: "decode response", Err: err}
		}
		return Message{Response: lines}, nil
	}
	return Message{}, &CodecError{Op: "decode", Err: fmt.Errorf("empty envelope")}
}

func decodeRequest(b []byte) (command.Request, error) {
	var (
		k, id, work, brk                       uint64
		hasWork, hasBreak                      bool
		all, showPercentage, shouldClear, dflt uint64
	)
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case fieldKind:
			return consumeVarint(typ, v, &k)
		case fieldWork:
			hasWork = true
			return consumeVarint(typ, v, &work)
		case fieldBreak:
			hasBreak = true
			return consumeVarint(typ, v, &brk)
		case fieldID:
			return consumeVarint(typ, v, &id)
		case fieldAll:
			return consumeVarint(typ, v, &all)
		case fieldShowPercentage:
			return consumeVarint(typ, v, &showPercentage)
		case fieldShouldClear:
			return consumeVarint(typ, v, &shouldClear)
		case fieldDefault:
			return consumeVarint(typ, v, &dflt)
		}
		return 0, nil
	})
	if err != nil {
		return nil, err
	}

	minutes := func(set bool, v uint64, name string) (*uint16, error) {
		if !set {
			return nil, nil
		}
		if v > 0xffff {
			return nil, fmt.Errorf("%s minutes out of range: %d", name, v)
		}
		return command.Minutes(uint16(v)), nil
	}
	durations := func() (command.Durations, error) {
		w, err := minutes(hasWork, work, "work")
		if err != nil {
			return command.Durations{}, err
		}
		br, err := minutes(hasBreak, brk, "break")
		if err != nil {
			return command.Durations{}, err
		}
		return command.Durations{Work: w, Break: br, Default: protowire.DecodeBool(dflt)}, nil
	}

	switch kind(k) {
	case kindCreate:
		d, err := durations()
		return command.Create{Durations: d}, err
	case kindQueue:
		d, err := durations()
		return command.Queue{Durations: d}, err
	case kindDelete:
		if id > 0xffff {
			return nil, fmt.Errorf("id out of range: %d", id)
		}
		return command.Delete{ID: uint16(id), All: protowire.DecodeBool(all)}, nil
	case kindList:
		return command.List{ShowPercentage: protowire.DecodeBool(showPercentage)}, nil
	case kindTest:
		return command.Test{}, nil
	case kindHistory:
		return command.History{ShouldClear: protowire.DecodeBool(shouldClear)}, nil
	}
	return nil, fmt.Errorf("unknown request kind %d", k)
}

func decodeResponse(b []byte) ([]string, error) {
	lines := []string{}
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		if num != fieldLine {
			return 0, nil
		}
		var raw []byte
		n, err := consumeBytes(typ, v, &raw)
		if err != nil {
			return 0, err
		}
		lines = append(lines, string(raw))
		return n, nil
	})
	return lines, err
}
