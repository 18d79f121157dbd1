package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pomodoro/internal/app"
)

func main() {
	var (
		cfgPath   string
		socketDir string
		verbose   bool
	)
	flag.StringVar(&cfgPath, "config", "", "path to config json or yaml (optional)")
	flag.StringVar(&socketDir, "socket-dir", "", "directory for the control sockets (default: system temp dir)")
	flag.BoolVar(&verbose, "v", false, "debug logging")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] [command [args]]\n\nWithout a command the server starts. Commands:\n", os.Args[0])
		app.PrintHelp(flag.CommandLine.Output())
		fmt.Fprintln(flag.CommandLine.Output(), "\nFlags:")
		flag.PrintDefaults()
	}
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(app.Options{ConfigPath: cfgPath, SocketDir: socketDir, Verbose: verbose})
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
	defer a.Close()

	if flag.NArg() == 0 {
		if err := a.RunServer(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "fatal:", err)
			a.Close()
			os.Exit(1)
		}
		return
	}

	if err := a.RunClient(ctx, flag.Args()); err != nil {
		if !errors.Is(err, app.ErrRemoteFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		a.Close()
		os.Exit(1)
	}
}
