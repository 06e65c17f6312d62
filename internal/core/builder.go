package core

import (
	"crypto/tls"
	"fmt"
	"os"
	"time"

	"ircsess/config"
	"ircsess/internal/capability"
	"ircsess/internal/metrics"
	"ircsess/internal/retry"
	"ircsess/internal/transport"
	"ircsess/tunnel"
	"ircsess/util"
)

// Build constructs the client described by cfg. cfg must already be
// validated.
func Build(cfg *config.Config, logger *util.Logger, version string) (*ClientMode, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("no server to connect to")
	}

	m := &ClientMode{
		Config:     cfg,
		Dialer:     buildDialer(cfg, logger),
		TLS:        buildTLS(cfg),
		Capability: buildCapability(cfg, logger, version),
		Backoff:    buildBackoff(cfg, logger),
		Breaker:    buildBreaker(logger),
		Metrics:    metrics.New(),
		Logger:     logger,
		Grace:      config.DefaultGracePeriod,

		RegisterTimeout: config.DefaultRegisterTimeout,
	}
	return m, nil
}

// ── builders ─────────────────────────────────────────────────────────

// buildDialer creates the transport.Dialer for the given config.
func buildDialer(cfg *config.Config, logger *util.Logger) transport.Dialer {
	if cfg.TunnelEnabled {
		return transport.NewSSHDialer(&tunnel.SSHConfig{
			User:          cfg.TunnelUser,
			Host:          cfg.TunnelHost,
			Port:          cfg.TunnelPort,
			KeyPath:       cfg.SSHKeyPath,
			PromptPass:    cfg.SSHPassword,
			UseAgent:      cfg.UseSSHAgent,
			StrictHostKey: cfg.StrictHostKey,
			KnownHosts:    cfg.KnownHostsPath,
			ConnTimeout:   cfg.Timeout,
			KeepAlive:     config.DefaultSSHKeepAlive,
		}, logger)
	}
	return &transport.TCPDialer{Timeout: cfg.Timeout, LocalAddr: cfg.BindAddr}
}

// buildTLS returns nil for plain-text connections.
func buildTLS(cfg *config.Config) *tls.Config {
	if !cfg.TLS {
		return nil
	}
	return &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.TLSInsecure, //nolint:gosec
		MinVersion:         tls.VersionTLS12,
	}
}

// buildCapability selects what drives the session: a bot program or
// the interactive console.
func buildCapability(cfg *config.Config, logger *util.Logger, version string) capability.Capability {
	if cfg.Execute != "" {
		return &capability.Exec{
			Command: cfg.Execute,
			Logger:  logger,
		}
	}
	c := &capability.Console{
		In:      os.Stdin,
		Out:     os.Stdout,
		Logger:  logger,
		Version: version,
		NoColor: cfg.NoColor,
	}
	if cfg.Timestamps {
		c.Now = time.Now
	}
	return c
}

// buildBackoff returns nil unless reconnecting is enabled; Run then
// makes a single attempt.
func buildBackoff(cfg *config.Config, logger *util.Logger) *retry.Backoff {
	if !cfg.Reconnect {
		return nil
	}
	b := retry.DefaultBackoff()
	b.MaxAttempts = cfg.MaxReconnectAttempts
	if cfg.MaxReconnectBackoff > 0 {
		b.MaxDelay = cfg.MaxReconnectBackoff
	}
	b.OnRetry = func(attempt int, wait time.Duration, err error) {
		logger.Warn("%v; reconnecting in %s (attempt %d)", err, wait.Round(time.Millisecond), attempt)
	}
	return b
}

func buildBreaker(logger *util.Logger) *retry.CircuitBreaker {
	return retry.NewCircuitBreaker(&retry.CircuitBreakerConfig{
		MaxFailures:  5,
		ResetTimeout: 2 * time.Minute,
		OnStateChange: func(from, to retry.State) {
			logger.Verbose("reconnect circuit %s -> %s", from, to)
		},
	})
}
