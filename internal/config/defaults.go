package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultAddr             = ":8080"
	DefaultAlertAddr        = "127.0.0.1:8081"
	DefaultDBPort           = 5432
	DefaultDBSSLMode        = "prefer"
	DefaultMaxConns         = 10
	DefaultMinConns         = 2
	DefaultLedgerPath       = "data/referrals.json"
	DefaultSavePeriod       = 5 * time.Minute
	DefaultMaxMessageLength = 500
	DefaultSendBuffer       = 64
	DefaultWriteTimeout     = 10 * time.Second
	DefaultPongTimeout      = 60 * time.Second
)

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.AlertAddr == "" {
		c.Server.AlertAddr = DefaultAlertAddr
	}

	if c.Database.Enabled() {
		if c.Database.Port == 0 {
			c.Database.Port = DefaultDBPort
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = DefaultDBSSLMode
		}
		if c.Database.MaxConns == 0 {
			c.Database.MaxConns = DefaultMaxConns
		}
		if c.Database.MinConns == 0 {
			c.Database.MinConns = DefaultMinConns
		}
	}

	if c.Referral.LedgerPath == "" {
		c.Referral.LedgerPath = DefaultLedgerPath
	}
	if c.Referral.SavePeriod == 0 {
		c.Referral.SavePeriod = DefaultSavePeriod
	}

	if c.Chat.MaxMessageLength == 0 {
		c.Chat.MaxMessageLength = DefaultMaxMessageLength
	}
	if c.Chat.SendBuffer == 0 {
		c.Chat.SendBuffer = DefaultSendBuffer
	}
	if c.Chat.WriteTimeout == 0 {
		c.Chat.WriteTimeout = DefaultWriteTimeout
	}
	if c.Chat.PongTimeout == 0 {
		c.Chat.PongTimeout = DefaultPongTimeout
	}
}
