package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != DefaultListenAddress || cfg.RPC.MaxPageSize != DefaultMaxPageSize {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Archive.DSN != cfg.Archive.DSN || reloaded.RPC.JWT.HSSecretEnv != DefaultJWTSecretEnv {
		t.Fatalf("round trip mismatch: %+v vs %+v", reloaded, cfg)
	}
}

func TestLoadParsesSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `ListenAddress = "127.0.0.1:9000"
DataDir = "/var/lib/pettrace"
GenesisFile = "genesis.yaml"
Environment = "prod"

[bounty]
MaxCeloBounty = "5000000000000000000"

[archive]
Enabled = true
Driver = "postgres"
DSN = "postgres://pettrace@db/pettrace"

[rpc]
MaxPageSize = 25
TxPerMinute = 30
TxBurst = 3
AllowedOrigins = ["https://pettrace.example"]

[rpc.jwt]
Enable = true
HSSecretEnv = "TEST_JWT_SECRET"
Issuer = "pettrace-web"
Audience = "pettrace-rpc"

[logging]
Level = "debug"
File = "/var/log/pettrace/node.log"

[telemetry]
Endpoint = "otel:4318"
Traces = true
SampleRatio = 0.25
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != "127.0.0.1:9000" || cfg.Environment != "prod" {
		t.Fatalf("unexpected top level %+v", cfg)
	}
	if cfg.ReceiptsFile != filepath.Join("/var/lib/pettrace", "receipts.db") {
		t.Fatalf("unexpected receipts path %s", cfg.ReceiptsFile)
	}
	if cfg.StateDir() != filepath.Join("/var/lib/pettrace", "state") {
		t.Fatalf("unexpected state dir %s", cfg.StateDir())
	}
	if got := cfg.ResolveGenesis(path); got != filepath.Join(dir, "genesis.yaml") {
		t.Fatalf("unexpected genesis path %s", got)
	}
	native, stable, err := cfg.Bounty.Caps()
	if err != nil {
		t.Fatalf("caps: %v", err)
	}
	if native.String() != "5000000000000000000" || stable != nil {
		t.Fatalf("unexpected caps %v %v", native, stable)
	}
	if cfg.Archive.Driver != "postgres" || cfg.RPC.MaxPageSize != 25 || cfg.RPC.TxBurst != 3 {
		t.Fatalf("unexpected sections %+v", cfg)
	}
	if !cfg.RPC.JWT.Enable || cfg.RPC.JWT.Issuer != "pettrace-web" {
		t.Fatalf("unexpected jwt %+v", cfg.RPC.JWT)
	}
	if !cfg.Telemetry.Traces || cfg.Telemetry.SampleRatio != 0.25 {
		t.Fatalf("unexpected telemetry %+v", cfg.Telemetry)
	}

	t.Setenv("TEST_JWT_SECRET", "")
	if _, err := cfg.RPC.JWT.Secret(); err == nil {
		t.Fatalf("expected error for empty secret")
	}
	t.Setenv("TEST_JWT_SECRET", " s3cret ")
	secret, err := cfg.RPC.JWT.Secret()
	if err != nil || secret != "s3cret" {
		t.Fatalf("unexpected secret %q (%v)", secret, err)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"unknown key":   "Bogus = 1\n",
		"negative cap":  "[bounty]\nMaxCUSDBounty = \"-1\"\n",
		"bad cap":       "[bounty]\nMaxCeloBounty = \"ten\"\n",
		"bad driver":    "[archive]\nEnabled = true\nDriver = \"mysql\"\nDSN = \"x\"\n",
		"sample ratio":  "[telemetry]\nSampleRatio = 2.0\n",
		"negative skew": "[rpc.jwt]\nMaxSkewSeconds = -1\n",
	}
	for name, contents := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
				t.Fatalf("write: %v", err)
			}
			_, err := Load(path)
			if err == nil {
				t.Fatalf("expected error")
			}
			if name == "unknown key" && !strings.Contains(err.Error(), "Bogus") {
				t.Fatalf("error should name the key: %v", err)
			}
		})
	}
}
