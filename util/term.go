package util

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool { return term.IsTerminal(int(f.Fd())) }

// ReadSecret prints prompt on stderr and reads one line from the
// terminal on stdin without echo.
func ReadSecret(prompt string) (string, error) {
	if !IsTerminal(os.Stdin) {
		return "", fmt.Errorf("cannot prompt for secret: stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	return string(b), nil
}
