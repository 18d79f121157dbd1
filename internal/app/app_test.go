package app

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pomodoro/internal/eventbus"
	"pomodoro/internal/ipc"
	logx "pomodoro/pkg/logx"
)

const quietConfig = `{
  "logging": {"console": false},
  "delivery": {"desktop": {"enabled": false}},
  "ipc": {"handshake_timeout": "200ms"}
}`

func newTestApp(t *testing.T, dir string, stdin io.Reader, stdout io.Writer) *App {
	t.Helper()
	cfg := filepath.Join(dir, "config.json")
	if _, err := os.Stat(cfg); err != nil {
		if err := os.WriteFile(cfg, []byte(quietConfig), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	a, err := New(Options{ConfigPath: cfg, SocketDir: dir, Stdin: stdin, Stdout: stdout, Stderr: io.Discard})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func waitRunning(t *testing.T, addrs ipc.Addresses) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		st, err := ipc.Detect(context.Background(), addrs, 100*time.Millisecond, logx.Nop())
		if err == nil && st == ipc.Running {
			return
		}
	}
	t.Fatalf("server never answered the handshake")
}

func TestServerAndClientEndToEnd(t *testing.T) {
	dir := t.TempDir()
	stdinR, stdinW := io.Pipe()
	defer stdinW.Close()
	console := &syncBuffer{}

	server := newTestApp(t, dir, stdinR, console)
	served := make(chan error, 1)
	go func() { served <- server.RunServer(context.Background()) }()
	waitRunning(t, server.Addresses())

	client := func(args ...string) (string, error) {
		out := &syncBuffer{}
		c := newTestApp(t, dir, nil, out)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := c.RunClient(ctx, args)
		return out.String(), err
	}

	if out, err := client("create", "-w", "25", "-b", "5"); err != nil || !strings.Contains(out, "Notification (id: 1) created") {
		t.Fatalf("create: %q %v", out, err)
	}
	if out, err := client("q", "-d"); err != nil || !strings.Contains(out, "Notification (id: 2) created and queued") {
		t.Fatalf("queue: %q %v", out, err)
	}
	if out, err := client("ls", "-p"); err != nil || !strings.Contains(out, "percentage") {
		t.Fatalf("list: %q %v", out, err)
	}
	out, err := client("delete", "-i", "9")
	if !errors.Is(err, ErrRemoteFailed) || !strings.Contains(out, "Error: deleting id (9) failed. Corresponding notification does not exist") {
		t.Fatalf("delete missing: %q %v", out, err)
	}
	if out, err := client("d", "-a"); err != nil || !strings.Contains(out, "All Notifications deleted") {
		t.Fatalf("delete all: %q %v", out, err)
	}
	if _, err := client("exit"); err == nil {
		t.Fatalf("client exit accepted")
	}
	if _, err := client("create", "-w", "x"); err == nil {
		t.Fatalf("malformed client args accepted")
	}

	// A second server sees the first one and leaves.
	second := &syncBuffer{}
	if err := newTestApp(t, dir, strings.NewReader(""), second).RunServer(context.Background()); err != nil {
		t.Fatalf("second server: %v", err)
	}
	if !strings.Contains(second.String(), "already running") {
		t.Fatalf("second server output: %q", second.String())
	}

	if _, err := io.WriteString(stdinW, "exit\n"); err != nil {
		t.Fatalf("write exit: %v", err)
	}
	select {
	case err := <-served:
		if err != nil {
			t.Fatalf("server: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("server did not exit")
	}
	if _, err := os.Stat(server.Addresses().Server); !os.IsNotExist(err) {
		t.Fatalf("server socket left behind")
	}
	for _, want := range []string{"slack_token", "discord_webhook_url", "configuration is empty"} {
		if !strings.Contains(console.String(), want) {
			t.Fatalf("startup report missing %q:\n%s", want, console.String())
		}
	}
}

func TestStatusLoopReportsActiveCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notify.sock")
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer conn.Close()
	t.Setenv("NOTIFY_SOCKET", path)

	a := newTestApp(t, t.TempDir(), nil, io.Discard)
	bus := eventbus.New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.statusLoop(ctx, bus, func() int { return 3 })
	}()
	defer func() {
		cancel()
		<-done
	}()

	buf := make([]byte, 128)
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		bus.Publish(eventbus.Event{Type: eventbus.NotificationScheduled, Data: eventbus.Scheduled{ID: 1}})
		_ = conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, err := conn.Read(buf)
		if err != nil {
			continue
		}
		if got := string(buf[:n]); got != "STATUS=3 active notifications" {
			t.Fatalf("status = %q", got)
		}
		return
	}
	t.Fatalf("no status notification")
}

func TestStatusLine(t *testing.T) {
	for n, want := range map[int]string{0: "0 active notifications", 1: "1 active notification", 4: "4 active notifications"} {
		if got := statusLine(n); got != want {
			t.Fatalf("statusLine(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestClientWithoutServer(t *testing.T) {
	dir := t.TempDir()
	c := newTestApp(t, dir, nil, io.Discard)
	err := c.RunClient(context.Background(), []string{"ls"})
	var te *ipc.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want transport error", err)
	}
}

func TestClientHelpIsLocal(t *testing.T) {
	dir := t.TempDir()
	out := &syncBuffer{}
	c := newTestApp(t, dir, nil, out)
	if err := c.RunClient(context.Background(), []string{"help"}); err != nil {
		t.Fatalf("help: %v", err)
	}
	if !strings.Contains(out.String(), "create|c") {
		t.Fatalf("help output: %q", out.String())
	}
}
