// Command ircsess connects to an IRC server, optionally through an SSH
// gateway, and bridges it to the terminal or a child process.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ircsess/cmd"
	ircerr "ircsess/internal/errors"
)

// exit codes
const (
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	// SIGHUP too: a closed terminal should still send QUIT.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	err := cmd.Execute(ctx, os.Args[1:])
	if err == nil {
		return 0
	}
	fmt.Fprintln(os.Stderr, "ircsess:", err)

	var ce *ircerr.ConfigError
	if ircerr.As(err, &ce) {
		return exitUsage
	}
	return exitFailure
}
