package config

import (
	"testing"

	ircerr "ircsess/internal/errors"
)

// ── ParseTunnelSpec ──────────────────────────────────────────────────

func TestParseTunnelSpec(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantUser string
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{"full", "admin@bastion.example.com:2222", "admin", "bastion.example.com", 2222, false},
		{"no port", "root@gateway", "root", "gateway", 22, false},
		{"no user", "jump-host:2200", "", "jump-host", 2200, false},
		{"host only", "gateway.local", "", "gateway.local", 22, false},
		{"bad port", "user@host:999999", "", "", 0, true},
		{"port zero", "host:0", "", "", 0, true},
		{"empty", "", "", "", 0, true},
		{"colon only", ":", "", "", 0, true},
		{"no host", ":22", "", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, host, port, err := ParseTunnelSpec(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr = %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if user != tt.wantUser || host != tt.wantHost || port != tt.wantPort {
				t.Errorf("got (%q, %q, %d), want (%q, %q, %d)",
					user, host, port, tt.wantUser, tt.wantHost, tt.wantPort)
			}
		})
	}
}

func TestApplyTunnelSpec(t *testing.T) {
	cfg := Default()
	cfg.TunnelSpec = "ops@bastion:2200"
	if err := cfg.ApplyTunnelSpec(); err != nil {
		t.Fatal(err)
	}
	if !cfg.TunnelEnabled || cfg.TunnelUser != "ops" || cfg.TunnelHost != "bastion" || cfg.TunnelPort != 2200 {
		t.Errorf("tunnel fields = %+v", cfg)
	}

	cfg = Default()
	cfg.TunnelSpec = "host:notaport"
	err := cfg.ApplyTunnelSpec()
	var ce *ircerr.ConfigError
	if !ircerr.As(err, &ce) || ce.Field != "tunnel" {
		t.Fatalf("err = %v, want ConfigError for tunnel", err)
	}
}

// ── ParseServer ──────────────────────────────────────────────────────

func TestParseServer(t *testing.T) {
	tests := []struct {
		input      string
		tls        bool
		wantHost   string
		wantPort   int
		wantSecure bool
		wantErr    bool
	}{
		{"irc.libera.chat", false, "irc.libera.chat", 6667, false, false},
		{"irc.libera.chat", true, "irc.libera.chat", 6697, true, false},
		{"irc.libera.chat:7000", false, "irc.libera.chat", 7000, false, false},
		{"ircs://irc.libera.chat", false, "irc.libera.chat", 6697, true, false},
		{"irc://irc.example.net:6668/#go-nuts", false, "irc.example.net", 6668, false, false},
		{"[::1]:6667", false, "::1", 6667, false, false},
		{"::1", false, "::1", 6667, false, false},
		{"", false, "", 0, false, true},
		{"host:99999", false, "", 0, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			host, port, secure, err := ParseServer(tt.input, tt.tls)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr = %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if host != tt.wantHost || port != tt.wantPort || secure != tt.wantSecure {
				t.Errorf("got (%q, %d, %v), want (%q, %d, %v)",
					host, port, secure, tt.wantHost, tt.wantPort, tt.wantSecure)
			}
		})
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Port != DefaultPort || cfg.RealName != DefaultRealName || cfg.MaxFrame != DefaultMaxFrame {
		t.Errorf("Default() = %+v", cfg)
	}
	if cfg.Timeout != DefaultConnTimeout {
		t.Errorf("Timeout = %v", cfg.Timeout)
	}
}
