package cmd

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	ircerr "ircsess/internal/errors"
)

// TestExecute_Version verifies --version prints a version string.
func TestExecute_Version(t *testing.T) {
	if err := Execute(context.Background(), []string{"--version"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestExecute_Help verifies --help (and no args) returns without error.
func TestExecute_Help(t *testing.T) {
	for _, args := range [][]string{{"--help"}, {}} {
		name := "no-args"
		if len(args) > 0 {
			name = args[0]
		}
		t.Run(name, func(t *testing.T) {
			if err := Execute(context.Background(), args); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

// TestExecute_DryRun verifies --dry-run validates and exits cleanly.
func TestExecute_DryRun(t *testing.T) {
	err := Execute(context.Background(), []string{
		"-n", "gopher", "--join", "#go", "--dry-run", "ircs://irc.example.net",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestExecute_DryRunInvalid verifies --dry-run still catches bad configs.
func TestExecute_DryRunInvalid(t *testing.T) {
	err := Execute(context.Background(), []string{"--dry-run", "irc.example.net"})
	var ce *ircerr.ConfigError
	if !ircerr.As(err, &ce) || ce.Field != "nick" {
		t.Fatalf("err = %v, want a nick config error", err)
	}
}

// TestExecute_InvalidFlags verifies unknown flags produce an error.
func TestExecute_InvalidFlags(t *testing.T) {
	if err := Execute(context.Background(), []string{"--nonexistent-flag"}); err == nil {
		t.Fatal("expected error for unknown flag")
	}
}

func TestParse_Server(t *testing.T) {
	tests := []struct {
		args   []string
		host   string
		port   int
		secure bool
	}{
		{[]string{"irc.example.net"}, "irc.example.net", 6667, false},
		{[]string{"irc.example.net:7000"}, "irc.example.net", 7000, false},
		{[]string{"ircs://irc.example.net"}, "irc.example.net", 6697, true},
		{[]string{"--tls", "irc.example.net"}, "irc.example.net", 6697, true},
		{[]string{"irc://[::1]:6668/#go"}, "::1", 6668, false},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			cfg, _, err := parse(append([]string{"-n", "gopher"}, tt.args...), io.Discard)
			if err != nil {
				t.Fatal(err)
			}
			if cfg.Host != tt.host || cfg.Port != tt.port || cfg.TLS != tt.secure {
				t.Errorf("got %s:%d tls=%v", cfg.Host, cfg.Port, cfg.TLS)
			}
		})
	}
}

func TestParse_BadServer(t *testing.T) {
	_, _, err := parse([]string{"-n", "gopher", "irc.example.net:notaport"}, io.Discard)
	var ce *ircerr.ConfigError
	if !ircerr.As(err, &ce) || ce.Field != "server" {
		t.Fatalf("err = %v", err)
	}
}

func TestParse_TooManyArgs(t *testing.T) {
	if _, _, err := parse([]string{"-n", "gopher", "a.example", "b.example"}, io.Discard); err == nil {
		t.Fatal("expected an error for two servers")
	}
}

func TestParse_UserDefaultsToNick(t *testing.T) {
	cfg, _, err := parse([]string{"-n", "gopher", "irc.example.net"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.User != "gopher" || cfg.RealName != "ircsess" {
		t.Errorf("user=%q realname=%q", cfg.User, cfg.RealName)
	}
}

func TestParse_Flags(t *testing.T) {
	cfg, _, err := parse([]string{
		"-n", "gopher", "--user", "gp", "--realname", "Go Pher",
		"--join", "#go", "--join", "#ircsess,#bots",
		"-w", "5", "--reconnect", "--max-reconnect", "3",
		"--encoding", "iso-8859-1", "-vv", "--timestamps",
		"-T", "alice@bastion:2222",
		"irc.internal",
	}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"#go", "#ircsess", "#bots"}; !reflect.DeepEqual(cfg.Join, want) {
		t.Errorf("join = %v", cfg.Join)
	}
	if cfg.User != "gp" || cfg.RealName != "Go Pher" {
		t.Errorf("identity = %q %q", cfg.User, cfg.RealName)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("timeout = %s", cfg.Timeout)
	}
	if !cfg.Reconnect || cfg.MaxReconnectAttempts != 3 {
		t.Errorf("reconnect = %v/%d", cfg.Reconnect, cfg.MaxReconnectAttempts)
	}
	if cfg.Encoding != "iso-8859-1" || cfg.Verbose != 2 || !cfg.Timestamps {
		t.Errorf("cfg = %+v", cfg)
	}
	if !cfg.TunnelEnabled || cfg.TunnelUser != "alice" || cfg.TunnelHost != "bastion" || cfg.TunnelPort != 2222 {
		t.Errorf("tunnel = %s@%s:%d", cfg.TunnelUser, cfg.TunnelHost, cfg.TunnelPort)
	}
}

// TestParse_Precedence checks profile < environment < flags.
func TestParse_Precedence(t *testing.T) {
	dir := t.TempDir()
	profile := filepath.Join(dir, "ircsess.yaml")
	data := "server: ircs://irc.example.net\nnick: fromfile\nrealname: File Name\njoin: [\"#file\"]\n"
	if err := os.WriteFile(profile, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("IRCSESS_NICK", "fromenv")
	t.Setenv("IRCSESS_JOIN", "#env")

	cfg, _, err := parse([]string{"-c", profile, "--join", "#flag"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Host != "irc.example.net" || !cfg.TLS || cfg.Port != 6697 {
		t.Errorf("server = %s tls=%v", cfg.Addr(), cfg.TLS)
	}
	if cfg.Nick != "fromenv" {
		t.Errorf("nick = %q, want the environment's", cfg.Nick)
	}
	if cfg.RealName != "File Name" {
		t.Errorf("realname = %q, want the profile's", cfg.RealName)
	}
	if !reflect.DeepEqual(cfg.Join, []string{"#flag"}) {
		t.Errorf("join = %v, want the flag's", cfg.Join)
	}
}

func TestParse_MissingProfile(t *testing.T) {
	_, _, err := parse([]string{"-c", filepath.Join(t.TempDir(), "nope.yaml"), "-n", "gopher", "irc.example.net"}, io.Discard)
	if err == nil {
		t.Fatal("expected an error for a missing profile")
	}
}

func TestParse_PasswordAndPromptConflict(t *testing.T) {
	_, _, err := parse([]string{"-n", "gopher", "--password", "x", "--password-prompt", "irc.example.net"}, io.Discard)
	var ce *ircerr.ConfigError
	if !ircerr.As(err, &ce) || ce.Field != "password-prompt" {
		t.Fatalf("err = %v", err)
	}
}
