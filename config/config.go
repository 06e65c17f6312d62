// Package config defines the runtime configuration for ircsess and
// provides helpers for parsing server addresses and tunnel specs.
package config

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	ircerr "ircsess/internal/errors"
	"ircsess/internal/protocol"
	"ircsess/util"
)

// Config holds every tuneable for a single ircsess run.
type Config struct {
	// ── Connection ───────────────────────────────────────────────────
	Host        string
	Port        int
	TLS         bool
	TLSInsecure bool // skip certificate verification
	Timeout     time.Duration
	BindAddr    string // source IP for outgoing connections

	// ── Identity ─────────────────────────────────────────────────────
	Nick           string
	User           string
	RealName       string
	Password       string
	PasswordPrompt bool // true → prompt interactively

	// ── Session ──────────────────────────────────────────────────────
	Encoding string // "" selects auto-detection
	MaxFrame int
	Join     []string

	// ── SSH tunnel ───────────────────────────────────────────────────
	TunnelSpec     string // raw user@host[:port] from -T
	TunnelEnabled  bool
	TunnelUser     string
	TunnelHost     string
	TunnelPort     int
	SSHKeyPath     string
	SSHPassword    bool
	UseSSHAgent    bool
	StrictHostKey  bool
	KnownHostsPath string

	// ── Reconnect ────────────────────────────────────────────────────
	Reconnect            bool
	MaxReconnectAttempts int
	MaxReconnectBackoff  time.Duration

	// ── Execution ────────────────────────────────────────────────────
	Execute string // -e: bot program fed inbound lines

	// ── Output ───────────────────────────────────────────────────────
	Verbose    int
	Timestamps bool
	NoColor    bool
}

// Default returns a Config populated from defaults.go.
func Default() *Config {
	return &Config{
		Port:                 DefaultPort,
		Timeout:              DefaultConnTimeout,
		RealName:             DefaultRealName,
		MaxFrame:             DefaultMaxFrame,
		MaxReconnectAttempts: DefaultMaxReconnectAttempts,
		MaxReconnectBackoff:  DefaultMaxReconnectBackoff,
	}
}

// Addr returns host:port for display.
func (c *Config) Addr() string { return util.FormatAddr(c.Host, c.Port) }

// ── Server address parser ────────────────────────────────────────────

// ParseServer splits a server argument into host and port. It accepts
// "host", "host:port", "[v6]:port" and the irc:// and ircs:// URL
// forms; ircs:// reports secure=true. Without a port the result uses
// DefaultTLSPort when secure (or tls) is set and DefaultPort otherwise.
func ParseServer(spec string, tls bool) (host string, port int, secure bool, err error) {
	secure = tls
	switch {
	case strings.HasPrefix(spec, "ircs://"):
		spec, secure = strings.TrimPrefix(spec, "ircs://"), true
	case strings.HasPrefix(spec, "irc://"):
		spec = strings.TrimPrefix(spec, "irc://")
	}
	// irc://host/#channel style paths carry nothing we use here
	if i := strings.IndexByte(spec, '/'); i >= 0 {
		spec = spec[:i]
	}

	def := DefaultPort
	if secure {
		def = DefaultTLSPort
	}
	host, port, err = util.SplitHostPort(spec, def)
	if err != nil {
		return "", 0, false, fmt.Errorf("invalid server %q: %w", spec, err)
	}
	return host, port, secure, nil
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q, expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	return user, host, port, nil
}

// ApplyTunnelSpec parses TunnelSpec, when set, into the tunnel fields.
func (c *Config) ApplyTunnelSpec() error {
	if c.TunnelSpec == "" {
		return nil
	}
	user, host, port, err := ParseTunnelSpec(c.TunnelSpec)
	if err != nil {
		return &ircerr.ConfigError{
			Field:   "tunnel",
			Value:   c.TunnelSpec,
			Message: err.Error(),
			Hint:    "use -T user@bastion.example.com[:2222]",
		}
	}
	c.TunnelEnabled = true
	c.TunnelUser = user
	c.TunnelHost = host
	c.TunnelPort = port
	return nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent. It
// returns a *errors.ConfigError naming the first offending field.
func (c *Config) Validate() error {
	if c.Host == "" {
		return &ircerr.ConfigError{
			Field:   "server",
			Message: "server is required",
			Hint:    "pass it as the first argument, e.g. ircsess irc.libera.chat",
		}
	}
	if c.Port < 1 || c.Port > 65535 {
		return &ircerr.ConfigError{Field: "port", Value: c.Port, Message: "port out of range 1-65535"}
	}

	for _, f := range []struct{ flag, value, hint string }{
		{"nick", c.Nick, "set --nick or IRCSESS_NICK"},
		{"user", c.User, "set --user or IRCSESS_USER"},
		{"realname", c.RealName, "set --realname or IRCSESS_REALNAME"},
	} {
		if f.value == "" {
			return &ircerr.ConfigError{Field: f.flag, Message: "must not be empty", Hint: f.hint}
		}
		if strings.ContainsAny(f.value, "\r\n\x00") {
			return &ircerr.ConfigError{Field: f.flag, Value: strconv.Quote(f.value), Message: "contains a line terminator"}
		}
	}
	if strings.ContainsAny(c.Nick, " ,*?!@") {
		return &ircerr.ConfigError{
			Field:   "nick",
			Value:   c.Nick,
			Message: "contains characters not allowed in a nickname",
		}
	}

	if c.Password != "" && c.PasswordPrompt {
		return &ircerr.ConfigError{
			Field:   "password-prompt",
			Message: "--password and --password-prompt are mutually exclusive",
		}
	}
	if c.TLSInsecure && !c.TLS {
		return &ircerr.ConfigError{
			Field:   "tls-insecure",
			Message: "only meaningful with --tls",
			Hint:    "add --tls or use an ircs:// server address",
		}
	}

	if c.BindAddr != "" && net.ParseIP(c.BindAddr) == nil {
		return &ircerr.ConfigError{
			Field:   "bind",
			Value:   c.BindAddr,
			Message: "not an IP address",
			Hint:    "use one of this host's addresses, e.g. --bind 192.0.2.10",
		}
	}

	if _, err := protocol.NewCodec(c.Encoding); err != nil {
		return &ircerr.ConfigError{
			Field:   "encoding",
			Value:   c.Encoding,
			Message: err.Error(),
			Hint:    "use an IANA charset name such as utf-8, iso-8859-1 or koi8-r",
		}
	}
	if c.MaxFrame < 0 {
		return &ircerr.ConfigError{Field: "max-frame", Value: c.MaxFrame, Message: "must not be negative"}
	}

	for _, ch := range c.Join {
		if ch == "" || strings.ContainsAny(ch, " ,\x07") {
			return &ircerr.ConfigError{
				Field:   "join",
				Value:   ch,
				Message: "not a valid channel name",
				Hint:    "repeat --join once per channel",
			}
		}
	}

	if c.TunnelEnabled && c.TunnelHost == "" {
		return &ircerr.ConfigError{Field: "tunnel", Message: "tunnel host is required"}
	}
	if c.Reconnect && c.MaxReconnectAttempts < 0 {
		return &ircerr.ConfigError{
			Field:   "max-reconnect",
			Value:   c.MaxReconnectAttempts,
			Message: "must not be negative",
			Hint:    "0 retries forever",
		}
	}
	return nil
}
