package capability

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"

	"ircsess/internal/protocol"
	"ircsess/internal/session"
	"ircsess/util"
)

// execQueue bounds the inbound lines waiting for the child to read.
const execQueue = 256

// Exec bridges a session to a bot program: every inbound message is
// written to the child's stdin as a wire line, and every line the
// child prints is sent to the server verbatim.
type Exec struct {
	Command string // run through the system shell
	Stderr  io.Writer
	Logger  *util.Logger

	lines chan string
}

// Attach subscribes the bridge to inbound messages. Lines are dropped
// rather than stalling the session when the child falls behind.
func (e *Exec) Attach(s *session.Session) {
	e.lines = make(chan string, execQueue)
	s.OnMessage(func(m protocol.Message) {
		select {
		case e.lines <- m.String():
		default:
			e.Logger.Warn("exec: child is not reading, dropped %s", m.Command())
		}
	})
}

func (e *Exec) command(ctx context.Context) (*exec.Cmd, error) {
	if e.Command == "" {
		return nil, fmt.Errorf("no command specified for exec mode")
	}
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd.exe", "/C", e.Command), nil
	}
	return exec.CommandContext(ctx, "/bin/sh", "-c", e.Command), nil
}

// Handle runs the child until it exits or ctx is cancelled.
func (e *Exec) Handle(ctx context.Context, s *session.Session) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd, err := e.command(ctx)
	if err != nil {
		return err
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	cmd.Stderr = e.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	e.Logger.Debug("exec: %s", cmd.String())
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("exec %q: %w", e.Command, err)
	}

	go func() {
		defer stdin.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case line := <-e.lines:
				if _, err := io.WriteString(stdin, line+"\n"); err != nil {
					return
				}
			}
		}
	}()

	readErr := util.ReadLines(ctx, stdout, func(line string) error {
		if line == "" {
			return nil
		}
		err := send(ctx, s, func() error { return s.Raw(line) })
		if err != nil && ctx.Err() == nil {
			e.Logger.Warn("exec: send %q: %v", line, err)
			return nil
		}
		return err
	})
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return nil
	}
	if readErr != nil {
		return fmt.Errorf("exec %q: %w", e.Command, readErr)
	}
	if waitErr != nil {
		return fmt.Errorf("exec %q: %w", e.Command, waitErr)
	}
	return nil
}
