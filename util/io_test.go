package util

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
)

func TestReadLines(t *testing.T) {
	var got []string
	err := ReadLines(context.Background(), strings.NewReader("/join #go\r\nhello\n\nlast"), func(l string) error {
		got = append(got, l)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"/join #go", "hello", "", "last"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestReadLines_StopsOnError(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	err := ReadLines(context.Background(), strings.NewReader("a\nb\nc\n"), func(string) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Errorf("err=%v calls=%d", err, calls)
	}
}

func TestReadLines_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ReadLines(ctx, strings.NewReader("a\n"), func(string) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}

func TestReadLines_ClosedPipe(t *testing.T) {
	r, w := io.Pipe()
	go func() {
		w.Write([]byte("one\n")) //nolint:errcheck
		w.CloseWithError(io.ErrClosedPipe)
	}()
	var got []string
	if err := ReadLines(context.Background(), r, func(l string) error {
		got = append(got, l)
		return nil
	}); err != nil {
		t.Fatalf("closed pipe reported: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %q", got)
	}
}

func TestIsHarmless(t *testing.T) {
	if !IsHarmless(nil) {
		t.Error("nil should be harmless")
	}
	if !IsHarmless(io.EOF) {
		t.Error("io.EOF should be harmless")
	}
	if !IsHarmless(net.ErrClosed) {
		t.Error("net.ErrClosed should be harmless")
	}
	if !IsHarmless(&net.OpError{Op: "read", Err: net.ErrClosed}) {
		t.Error("OpError wrapping ErrClosed should be harmless")
	}
	if IsHarmless(io.ErrUnexpectedEOF) {
		t.Error("ErrUnexpectedEOF should NOT be harmless")
	}
}
