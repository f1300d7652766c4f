package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"
)

// Validate checks the configuration for values the node cannot run with.
func (c *Config) Validate() error {
	if _, _, err := c.Bounty.Caps(); err != nil {
		return err
	}
	if c.Archive.Enabled {
		switch c.Archive.Driver {
		case "sqlite", "postgres":
		default:
			return fmt.Errorf("archive: unsupported driver %q", c.Archive.Driver)
		}
		if strings.TrimSpace(c.Archive.DSN) == "" {
			return fmt.Errorf("archive: DSN required for driver %s", c.Archive.Driver)
		}
	}
	if c.RPC.TxPerMinute < 0 {
		return fmt.Errorf("rpc: TxPerMinute must not be negative")
	}
	if c.RPC.JWT.MaxSkewSeconds < 0 {
		return fmt.Errorf("rpc.jwt: MaxSkewSeconds must not be negative")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: SampleRatio must be within [0, 1]")
	}
	return nil
}

// Caps parses the configured bounty caps. A nil value keeps the default.
func (b Bounty) Caps() (*big.Int, *big.Int, error) {
	native, err := parseUintAmount(b.MaxCeloBounty)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid bounty.MaxCeloBounty: %w", err)
	}
	stable, err := parseUintAmount(b.MaxCUSDBounty)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid bounty.MaxCUSDBounty: %w", err)
	}
	return native, stable, nil
}

// Secret reads the HMAC secret from the configured environment variable.
func (j JWT) Secret() (string, error) {
	if !j.Enable {
		return "", nil
	}
	name := strings.TrimSpace(j.HSSecretEnv)
	secret := strings.TrimSpace(os.Getenv(name))
	if secret == "" {
		return "", fmt.Errorf("rpc.jwt: environment variable %s is empty", name)
	}
	return secret, nil
}

func parseUintAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("not a decimal integer: %q", raw)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("must not be negative: %q", raw)
	}
	return value, nil
}
