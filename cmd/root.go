// Package cmd wires up the CLI flags and hands the resulting config to
// the client core.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"ircsess/config"
	"ircsess/internal/core"
	ircerr "ircsess/internal/errors"
	"ircsess/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X ircsess/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// options are the flags that steer the CLI itself rather than the
// connection.
type options struct {
	configPath  string
	timeoutSec  int
	showVersion bool
	showHelp    bool
	dryRun      bool
}

// Execute parses args and runs the client.
func Execute(ctx context.Context, args []string) error {
	cfg, opts, err := parse(args, os.Stderr)
	if err != nil {
		return err
	}
	switch {
	case opts.showHelp:
		return nil
	case opts.showVersion:
		fmt.Printf("ircsess %s\n", version)
		return nil
	case opts.dryRun:
		printSummary(os.Stdout, cfg)
		return nil
	}

	if cfg.PasswordPrompt {
		pw, err := util.ReadSecret("Server password: ")
		if err != nil {
			return err
		}
		cfg.Password = pw
	}

	logger := util.NewLogger(cfg.Verbose)
	m, err := core.Build(cfg, logger, version)
	if err != nil {
		return err
	}
	return m.Run(ctx)
}

// parse resolves the configuration: defaults, then the profile file,
// then IRCSESS_* variables, then flags given on the command line.
func parse(args []string, usage io.Writer) (*config.Config, *options, error) {
	fl := config.Default()
	opts := &options{}
	fs := flag.NewFlagSet("ircsess", flag.ContinueOnError)
	fs.SetOutput(usage)

	// ── identity ─────────────────────────────────────────────────
	fs.StringVarP(&fl.Nick, "nick", "n", "", "Nickname")
	fs.StringVar(&fl.User, "user", "", "User name (defaults to the nickname)")
	fs.StringVar(&fl.RealName, "realname", fl.RealName, "Real name")
	fs.StringVar(&fl.Password, "password", "", "Server password (PASS)")
	fs.BoolVar(&fl.PasswordPrompt, "password-prompt", false, "Prompt for the server password")

	// ── connection ───────────────────────────────────────────────
	fs.BoolVar(&fl.TLS, "tls", false, "Connect with TLS")
	fs.BoolVar(&fl.TLSInsecure, "tls-insecure", false, "Skip TLS certificate verification")
	fs.IntVarP(&opts.timeoutSec, "timeout", "w", 0, "Connect timeout in seconds")
	fs.StringVar(&fl.BindAddr, "bind", "", "Source IP for the connection")
	fs.StringVar(&fl.Encoding, "encoding", "", "Wire charset (auto-detect if empty)")
	fs.IntVar(&fl.MaxFrame, "max-frame", fl.MaxFrame, "Longest unterminated line kept, in bytes (0 = unlimited)")
	fs.StringSliceVar(&fl.Join, "join", nil, "Channel to join after registration (repeatable)")

	// ── reconnect ────────────────────────────────────────────────
	fs.BoolVar(&fl.Reconnect, "reconnect", false, "Reconnect when the connection drops")
	fs.IntVar(&fl.MaxReconnectAttempts, "max-reconnect", fl.MaxReconnectAttempts, "Consecutive failed reconnects before giving up (0 = forever)")

	// ── execution ────────────────────────────────────────────────
	fs.StringVarP(&fl.Execute, "exec", "e", "", "Bridge the connection to a bot command")

	// ── SSH tunnel ───────────────────────────────────────────────
	fs.StringVarP(&fl.TunnelSpec, "tunnel", "T", "", "SSH tunnel via [user@]host[:port]")
	fs.StringVar(&fl.SSHKeyPath, "ssh-key", "", "SSH private key file")
	fs.BoolVar(&fl.SSHPassword, "ssh-password", false, "Prompt for SSH password")
	fs.BoolVar(&fl.UseSSHAgent, "ssh-agent", false, "Use SSH agent")
	fs.BoolVar(&fl.StrictHostKey, "strict-hostkey", false, "Verify SSH host keys")
	fs.StringVar(&fl.KnownHostsPath, "known-hosts", "", "Custom known_hosts path")

	// ── output ───────────────────────────────────────────────────
	fs.CountVarP(&fl.Verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVar(&fl.Timestamps, "timestamps", false, "Prefix printed lines with the time")
	fs.BoolVar(&fl.NoColor, "no-color", false, "Disable colored output")

	// ── CLI ──────────────────────────────────────────────────────
	fs.StringVarP(&opts.configPath, "config", "c", "", "YAML profile file")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "Validate the configuration and exit")
	fs.BoolVar(&opts.showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&opts.showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(usage, fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if opts.showHelp || len(args) == 0 {
		printUsage(usage, fs)
		opts.showHelp = true
		return nil, opts, nil
	}
	if opts.showVersion {
		return nil, opts, nil
	}

	cfg := config.Default()
	if opts.configPath != "" {
		if err := config.LoadFile(opts.configPath, cfg); err != nil {
			return nil, nil, err
		}
	}
	if err := config.LoadFromEnv(cfg); err != nil {
		return nil, nil, err
	}
	overlayFlags(fs, cfg, fl, opts)

	// ── positional server ────────────────────────────────────────
	switch rest := fs.Args(); len(rest) {
	case 0:
	case 1:
		host, port, secure, err := config.ParseServer(rest[0], cfg.TLS)
		if err != nil {
			return nil, nil, &ircerr.ConfigError{
				Field:   "server",
				Value:   rest[0],
				Message: err.Error(),
				Hint:    "use host[:port], irc://host[:port] or ircs://host[:port]",
			}
		}
		cfg.Host, cfg.Port, cfg.TLS = host, port, secure
	default:
		return nil, nil, fmt.Errorf("unexpected arguments %q (one server expected)", strings.Join(rest[1:], " "))
	}

	if cfg.User == "" {
		cfg.User = cfg.Nick
	}
	if err := cfg.ApplyTunnelSpec(); err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, opts, nil
}

// overlayFlags copies the flags actually given on the command line
// from fl onto cfg.
func overlayFlags(fs *flag.FlagSet, cfg, fl *config.Config, opts *options) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "nick":
			cfg.Nick = fl.Nick
		case "user":
			cfg.User = fl.User
		case "realname":
			cfg.RealName = fl.RealName
		case "password":
			cfg.Password = fl.Password
		case "password-prompt":
			cfg.PasswordPrompt = fl.PasswordPrompt
		case "tls":
			cfg.TLS = fl.TLS
		case "tls-insecure":
			cfg.TLSInsecure = fl.TLSInsecure
		case "timeout":
			cfg.Timeout = time.Duration(opts.timeoutSec) * time.Second
		case "bind":
			cfg.BindAddr = fl.BindAddr
		case "encoding":
			cfg.Encoding = fl.Encoding
		case "max-frame":
			cfg.MaxFrame = fl.MaxFrame
		case "join":
			cfg.Join = fl.Join
		case "reconnect":
			cfg.Reconnect = fl.Reconnect
		case "max-reconnect":
			cfg.MaxReconnectAttempts = fl.MaxReconnectAttempts
		case "exec":
			cfg.Execute = fl.Execute
		case "tunnel":
			cfg.TunnelSpec = fl.TunnelSpec
		case "ssh-key":
			cfg.SSHKeyPath = fl.SSHKeyPath
		case "ssh-password":
			cfg.SSHPassword = fl.SSHPassword
		case "ssh-agent":
			cfg.UseSSHAgent = fl.UseSSHAgent
		case "strict-hostkey":
			cfg.StrictHostKey = fl.StrictHostKey
		case "known-hosts":
			cfg.KnownHostsPath = fl.KnownHostsPath
		case "verbose":
			cfg.Verbose = fl.Verbose
		case "timestamps":
			cfg.Timestamps = fl.Timestamps
		case "no-color":
			cfg.NoColor = fl.NoColor
		}
	})
}

// ── helpers ──────────────────────────────────────────────────────────

func printSummary(w io.Writer, cfg *config.Config) {
	scheme := "irc"
	if cfg.TLS {
		scheme = "ircs"
	}
	fmt.Fprintf(w, "server:   %s://%s\n", scheme, cfg.Addr())
	fmt.Fprintf(w, "identity: %s (user %s, %q)\n", cfg.Nick, cfg.User, cfg.RealName)
	if len(cfg.Join) > 0 {
		fmt.Fprintf(w, "join:     %s\n", strings.Join(cfg.Join, " "))
	}
	if cfg.TunnelEnabled {
		fmt.Fprintf(w, "tunnel:   %s@%s\n", cfg.TunnelUser, util.FormatAddr(cfg.TunnelHost, cfg.TunnelPort))
	}
	if cfg.Reconnect {
		fmt.Fprintf(w, "reconnect: up to %d attempts\n", cfg.MaxReconnectAttempts)
	}
	if cfg.Execute != "" {
		fmt.Fprintf(w, "exec:     %s\n", cfg.Execute)
	}
	fmt.Fprintln(w, "configuration OK")
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, `ircsess – IRC client v%s

Connects to one IRC server, registers, and relays between the server
and the terminal or a bot program.

Usage:
  ircsess [options] <server>

  <server> is host, host:port, irc://host[:port] or ircs://host[:port].

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(w, `
Examples:
  ircsess -n gopher --join '#go-nuts' ircs://irc.libera.chat
  ircsess -n gopher -T admin@bastion irc.internal:6667
  ircsess -n bot --reconnect -e ./bot.sh irc.example.net
  ircsess -c ~/.ircsess.yaml --dry-run
`)
}
