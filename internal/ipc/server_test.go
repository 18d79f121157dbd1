package ipc

import (
	"context"
	"errors"
	"os"
	"reflect"
	"strings"
	"testing"
	"time"

	"pomodoro/internal/command"
	"pomodoro/internal/eventbus"
	logx "pomodoro/pkg/logx"
)

func startServer(t *testing.T, h Handler) (Addresses, *Server) {
	t.Helper()
	addrs := DefaultAddresses(t.TempDir())
	srv, err := Listen(addrs, logx.Nop(), nil)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, h) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("serve: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Errorf("serve did not return")
		}
		_ = srv.Close()
	})
	return addrs, srv
}

func TestSendReceivesHandlerLines(t *testing.T) {
	t.Parallel()
	got := make(chan command.Request, 1)
	addrs, _ := startServer(t, func(_ context.Context, req command.Request) []string {
		got <- req
		return []string{"Notification (id: 1) created"}
	})

	req := command.Create{Durations: command.Durations{Work: command.Minutes(25)}}
	lines, err := Send(context.Background(), addrs, req)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !reflect.DeepEqual(lines, []string{"Notification (id: 1) created"}) {
		t.Fatalf("lines = %q", lines)
	}
	if r := <-got; !reflect.DeepEqual(r, command.Request(req)) {
		t.Fatalf("server saw %#v", r)
	}
	if _, err := os.Stat(addrs.Client); !os.IsNotExist(err) {
		t.Fatalf("client socket left behind: %v", err)
	}
}

func TestSendLargeResponse(t *testing.T) {
	t.Parallel()
	big := strings.Repeat("row\n", 5000)
	addrs, _ := startServer(t, func(context.Context, command.Request) []string {
		return []string{big, "end"}
	})
	lines, err := Send(context.Background(), addrs, command.List{})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(lines) != 2 || lines[0] != big {
		t.Fatalf("large response mangled: %d lines", len(lines))
	}
}

func TestSendWithoutServer(t *testing.T) {
	t.Parallel()
	addrs := DefaultAddresses(t.TempDir())
	_, err := Send(context.Background(), addrs, command.Test{})
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want *TransportError", err)
	}
}

func TestSendRejectsConsoleRequest(t *testing.T) {
	t.Parallel()
	_, err := Send(context.Background(), DefaultAddresses(t.TempDir()), command.Exit{})
	if !errors.Is(err, ErrNotRemote) {
		t.Fatalf("err = %v", err)
	}
}

func TestDetectRunning(t *testing.T) {
	t.Parallel()
	block := make(chan struct{})
	defer close(block)
	addrs, _ := startServer(t, func(context.Context, command.Request) []string {
		<-block
		return nil
	})
	st, err := Detect(context.Background(), addrs, time.Second, logx.Nop())
	if err != nil || st != Running {
		t.Fatalf("status = %v err = %v", st, err)
	}
}

func TestDetectFreeWaitsOutWindow(t *testing.T) {
	t.Parallel()
	addrs := DefaultAddresses(t.TempDir())
	const window = 150 * time.Millisecond
	start := time.Now()
	st, err := Detect(context.Background(), addrs, window, logx.Nop())
	if err != nil || st != Free {
		t.Fatalf("status = %v err = %v", st, err)
	}
	if took := time.Since(start); took < window {
		t.Fatalf("returned Free after %v, before the %v window", took, window)
	}
}

func TestDetectStaleServerFile(t *testing.T) {
	t.Parallel()
	addrs := DefaultAddresses(t.TempDir())
	if err := os.WriteFile(addrs.Server, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	st, _ := Detect(context.Background(), addrs, 100*time.Millisecond, logx.Nop())
	if st != Free {
		t.Fatalf("stale file reported as %v", st)
	}
	srv, err := Listen(addrs, logx.Nop(), nil)
	if err != nil {
		t.Fatalf("listen over stale file: %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := os.Stat(addrs.Server); !os.IsNotExist(err) {
		t.Fatalf("server socket not removed")
	}
}

func TestServerDropsMalformedAndKeepsServing(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4)
	defer unsub()

	addrs := DefaultAddresses(t.TempDir())
	srv, err := Listen(addrs, logx.Nop(), bus)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx, func(context.Context, command.Request) []string { return []string{"ok"} })
	defer srv.Close()

	ep, err := bind(addrs.Client)
	if err != nil {
		t.Fatal(err)
	}
	if err := ep.send(unixAddr(addrs.Server), []byte{0xff, 0xff}, time.Second); err != nil {
		t.Fatal(err)
	}
	_ = ep.close()

	lines, err := Send(context.Background(), addrs, command.Test{})
	if err != nil || !reflect.DeepEqual(lines, []string{"ok"}) {
		t.Fatalf("lines=%q err=%v", lines, err)
	}
	select {
	case ev := <-events:
		if ev.Type != eventbus.RequestHandled || ev.Data.(eventbus.Request).Kind != "test" {
			t.Fatalf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("no request event")
	}
}
