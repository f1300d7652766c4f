package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultListenAddress = ":8545"
	DefaultDataDir       = "./pettrace-data"
	DefaultMaxPageSize   = 100
	DefaultJWTSecretEnv  = "PETTRACE_RPC_JWT_SECRET"
)

type Config struct {
	ListenAddress string    `toml:"ListenAddress"`
	DataDir       string    `toml:"DataDir"`
	GenesisFile   string    `toml:"GenesisFile"`
	ReceiptsFile  string    `toml:"ReceiptsFile"`
	Environment   string    `toml:"Environment"`
	Bounty        Bounty    `toml:"bounty"`
	Archive       Archive   `toml:"archive"`
	RPC           RPC       `toml:"rpc"`
	Logging       Logging   `toml:"logging"`
	Telemetry     Telemetry `toml:"telemetry"`
}

// Load loads the configuration from the given path, writing a default file
// when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := &Config{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the configuration written for a fresh node.
func Default() *Config {
	cfg := &Config{
		ListenAddress: DefaultListenAddress,
		DataDir:       DefaultDataDir,
		GenesisFile:   "genesis.yaml",
		Environment:   "local",
		Archive: Archive{
			Enabled: true,
			Driver:  "sqlite",
		},
		RPC: RPC{
			ReadHeaderTimeout: 5,
			ReadTimeout:       15,
			WriteTimeout:      15,
			IdleTimeout:       60,
			MaxPageSize:       DefaultMaxPageSize,
			TxPerMinute:       60,
			TxBurst:           10,
			JWT: JWT{
				HSSecretEnv:    DefaultJWTSecretEnv,
				MaxSkewSeconds: 120,
			},
		},
		Logging: Logging{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
	}
	cfg.applyDefaults()
	return cfg
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = DefaultListenAddress
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = DefaultDataDir
	}
	if strings.TrimSpace(c.Environment) == "" {
		c.Environment = "local"
	}
	if strings.TrimSpace(c.ReceiptsFile) == "" {
		c.ReceiptsFile = filepath.Join(c.DataDir, "receipts.db")
	}
	if strings.TrimSpace(c.Archive.Driver) == "" {
		c.Archive.Driver = "sqlite"
	}
	if c.Archive.Driver == "sqlite" && strings.TrimSpace(c.Archive.DSN) == "" {
		c.Archive.DSN = "file:" + filepath.Join(c.DataDir, "events.sqlite")
	}
	if c.RPC.MaxPageSize == 0 {
		c.RPC.MaxPageSize = DefaultMaxPageSize
	}
	if c.RPC.TxBurst <= 0 {
		c.RPC.TxBurst = 1
	}
	if strings.TrimSpace(c.RPC.JWT.HSSecretEnv) == "" {
		c.RPC.JWT.HSSecretEnv = DefaultJWTSecretEnv
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
}

// StateDir is where the LevelDB state store lives.
func (c *Config) StateDir() string {
	return filepath.Join(c.DataDir, "state")
}

// ResolveGenesis returns the genesis path relative to the config file when
// it is not absolute.
func (c *Config) ResolveGenesis(configPath string) string {
	genesis := strings.TrimSpace(c.GenesisFile)
	if genesis == "" || filepath.IsAbs(genesis) {
		return genesis
	}
	return filepath.Join(filepath.Dir(configPath), genesis)
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
