package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}

	if c.Database.Enabled() {
		if err := c.Database.validate("database"); err != nil {
			return err
		}
	}

	if c.Referral.LedgerPath == "" {
		return errors.New("referral.ledger_path is required")
	}
	if c.Referral.SavePeriod < 0 {
		return errors.New("referral.save_period must be >= 0")
	}

	if c.Chat.MaxMessageLength < 1 {
		return errors.New("chat.max_message_length must be >= 1")
	}
	if c.Chat.SendBuffer < 1 {
		return errors.New("chat.send_buffer must be >= 1")
	}
	if c.Chat.WriteTimeout <= 0 {
		return errors.New("chat.write_timeout must be > 0")
	}
	if c.Chat.PongTimeout <= 0 {
		return errors.New("chat.pong_timeout must be > 0")
	}

	return nil
}

func (db DBConfig) validate(prefix string) error {
	if db.Port < 1 || db.Port > 65535 {
		return fmt.Errorf("%s.port must be between 1 and 65535, got %d", prefix, db.Port)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
