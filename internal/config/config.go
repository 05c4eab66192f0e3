package config

import "time"

// Config is the root configuration for a trollbox server.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DBConfig       `yaml:"database"`
	Referral ReferralConfig `yaml:"referral"`
	Chat     ChatConfig     `yaml:"chat"`
}

// ServerConfig holds the listen addresses.
type ServerConfig struct {
	// Addr serves the public WebSocket endpoint and health check.
	Addr string `yaml:"addr"`
	// AlertAddr serves the loopback-only trade-alert injection endpoint.
	// Empty disables it.
	AlertAddr string `yaml:"alert_addr"`
}

// DBConfig holds the optional Postgres connection for trade-alert history.
// An empty host disables persistence entirely; the chat core never needs it.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// Enabled reports whether a database was configured at all.
func (db DBConfig) Enabled() bool {
	return db.Host != ""
}

// ReferralConfig holds referral-ledger persistence settings.
type ReferralConfig struct {
	LedgerPath string        `yaml:"ledger_path"`
	SavePeriod time.Duration `yaml:"save_period"`
}

// ChatConfig holds per-connection chat limits.
type ChatConfig struct {
	MaxMessageLength int           `yaml:"max_message_length"` // runes
	SendBuffer       int           `yaml:"send_buffer"`        // frames queued per connection
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	PongTimeout      time.Duration `yaml:"pong_timeout"`
}
