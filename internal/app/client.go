package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"pomodoro/internal/command"
	"pomodoro/internal/ipc"
	logx "pomodoro/pkg/logx"
)

// RunClient parses args as one command, sends it to the running server and
// prints the reply. Help is answered locally. The returned error is already
// formatted for the user.
func (a *App) RunClient(ctx context.Context, args []string) error {
	req, err := command.ParseArgs(args)
	if err != nil {
		return err
	}
	switch req.(type) {
	case command.Help:
		for _, l := range command.HelpLines() {
			fmt.Fprintln(a.opts.Stdout, l)
		}
		return nil
	case command.Exit, command.Clear:
		return &command.UsageError{Command: req.Name(), Msg: "only available in the interactive session"}
	}

	lines, err := ipc.Send(ctx, a.addrs, req)
	if err != nil {
		var te *ipc.TransportError
		if errors.As(err, &te) {
			a.log.Debug("send failed", logx.Err(err))
			return fmt.Errorf("no pomodoro server reachable at %s: %w", a.addrs.Server, err)
		}
		return err
	}
	failed := false
	for _, l := range lines {
		fmt.Fprintln(a.opts.Stdout, strings.TrimRight(l, "\n"))
		if strings.HasPrefix(l, "Error: ") {
			failed = true
		}
	}
	if failed {
		return ErrRemoteFailed
	}
	return nil
}

// ErrRemoteFailed means the server answered with an error line, which has
// already been printed.
var ErrRemoteFailed = errors.New("request failed on server")

// PrintHelp writes the command summary to w.
func PrintHelp(w io.Writer) {
	for _, l := range command.HelpLines() {
		fmt.Fprintln(w, "  "+l)
	}
}
