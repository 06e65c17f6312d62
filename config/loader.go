package config

// loader.go - configuration loading from profile files and environment
// variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (LoadFromEnv)
//   3. Profile file  (LoadFile)
//   4. Defaults   (defaults.go)

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ── Profile file ─────────────────────────────────────────────────────

// Profile is the YAML shape of a profile file:
//
//	server: ircs://irc.libera.chat
//	nick: gopher
//	join: ["#go-nuts"]
//	tunnel: admin@bastion:2222
type Profile struct {
	Server      string   `yaml:"server"`
	TLS         bool     `yaml:"tls"`
	TLSInsecure bool     `yaml:"tls_insecure"`
	Timeout     int      `yaml:"timeout"` // seconds
	Bind        string   `yaml:"bind"`
	Nick        string   `yaml:"nick"`
	User        string   `yaml:"user"`
	RealName    string   `yaml:"realname"`
	Password    string   `yaml:"password"`
	Encoding    string   `yaml:"encoding"`
	MaxFrame    int      `yaml:"max_frame"`
	Join        []string `yaml:"join"`

	Tunnel         string `yaml:"tunnel"`
	SSHKey         string `yaml:"ssh_key"`
	SSHAgent       bool   `yaml:"ssh_agent"`
	StrictHostKey  bool   `yaml:"strict_hostkey"`
	KnownHostsPath string `yaml:"known_hosts"`

	Reconnect    bool `yaml:"reconnect"`
	MaxReconnect int  `yaml:"max_reconnect"`

	Exec    string `yaml:"exec"`
	Verbose int    `yaml:"verbose"`
}

// LoadFile reads the YAML profile at path and overlays its non-zero
// values onto cfg.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("profile: %w", err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("profile %s: %w", path, err)
	}
	return p.apply(cfg)
}

func (p *Profile) apply(cfg *Config) error {
	if p.Server != "" {
		host, port, secure, err := ParseServer(p.Server, p.TLS || cfg.TLS)
		if err != nil {
			return fmt.Errorf("profile: %w", err)
		}
		cfg.Host, cfg.Port, cfg.TLS = host, port, secure
	}
	if p.TLS {
		cfg.TLS = true
	}
	if p.TLSInsecure {
		cfg.TLSInsecure = true
	}
	if p.Timeout > 0 {
		cfg.Timeout = secondsDuration(p.Timeout)
	}
	setString(&cfg.BindAddr, p.Bind)
	setString(&cfg.Nick, p.Nick)
	setString(&cfg.User, p.User)
	setString(&cfg.RealName, p.RealName)
	setString(&cfg.Password, p.Password)
	setString(&cfg.Encoding, p.Encoding)
	if p.MaxFrame > 0 {
		cfg.MaxFrame = p.MaxFrame
	}
	if len(p.Join) > 0 {
		cfg.Join = append([]string(nil), p.Join...)
	}

	setString(&cfg.TunnelSpec, p.Tunnel)
	setString(&cfg.SSHKeyPath, p.SSHKey)
	setString(&cfg.KnownHostsPath, p.KnownHostsPath)
	cfg.UseSSHAgent = cfg.UseSSHAgent || p.SSHAgent
	cfg.StrictHostKey = cfg.StrictHostKey || p.StrictHostKey

	cfg.Reconnect = cfg.Reconnect || p.Reconnect
	if p.MaxReconnect > 0 {
		cfg.MaxReconnectAttempts = p.MaxReconnect
	}
	setString(&cfg.Execute, p.Exec)
	if p.Verbose > 0 {
		cfg.Verbose = p.Verbose
	}
	return nil
}

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the IRCSESS_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.
func LoadFromEnv(cfg *Config) error {
	if v := os.Getenv("IRCSESS_SERVER"); v != "" {
		host, port, secure, err := ParseServer(v, cfg.TLS || envBool("IRCSESS_TLS"))
		if err != nil {
			return fmt.Errorf("IRCSESS_SERVER: %w", err)
		}
		cfg.Host, cfg.Port, cfg.TLS = host, port, secure
	}
	if v := envInt("IRCSESS_PORT"); v > 0 {
		cfg.Port = v
	}
	if envBool("IRCSESS_TLS") {
		cfg.TLS = true
	}
	if envBool("IRCSESS_TLS_INSECURE") {
		cfg.TLSInsecure = true
	}
	if v := envInt("IRCSESS_TIMEOUT"); v > 0 {
		cfg.Timeout = secondsDuration(v)
	}

	setString(&cfg.BindAddr, os.Getenv("IRCSESS_BIND"))

	// Identity
	setString(&cfg.Nick, os.Getenv("IRCSESS_NICK"))
	setString(&cfg.User, os.Getenv("IRCSESS_USER"))
	setString(&cfg.RealName, os.Getenv("IRCSESS_REALNAME"))
	setString(&cfg.Password, os.Getenv("IRCSESS_PASSWORD"))

	// Session
	setString(&cfg.Encoding, os.Getenv("IRCSESS_ENCODING"))
	if v := envInt("IRCSESS_MAX_FRAME"); v > 0 {
		cfg.MaxFrame = v
	}
	if v := os.Getenv("IRCSESS_JOIN"); v != "" {
		cfg.Join = splitList(v)
	}

	// SSH tunnel
	setString(&cfg.TunnelSpec, os.Getenv("IRCSESS_TUNNEL"))
	setString(&cfg.SSHKeyPath, os.Getenv("IRCSESS_SSH_KEY"))
	if envBool("IRCSESS_SSH_PASSWORD") {
		cfg.SSHPassword = true
	}
	if envBool("IRCSESS_SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool("IRCSESS_STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	setString(&cfg.KnownHostsPath, os.Getenv("IRCSESS_KNOWN_HOSTS"))

	// Reconnect
	if envBool("IRCSESS_RECONNECT") {
		cfg.Reconnect = true
	}
	if v := envInt("IRCSESS_MAX_RECONNECT"); v > 0 {
		cfg.MaxReconnectAttempts = v
	}

	// Output
	if v := envInt("IRCSESS_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
	if os.Getenv("NO_COLOR") != "" {
		cfg.NoColor = true
	}
	return nil
}

// ── helpers ──────────────────────────────────────────────────────────

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// splitList splits a comma or space separated list, dropping empties.
func splitList(v string) []string {
	return strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' })
}

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
