package config

// Bounty overrides the registry caps. Amounts are decimal strings in the
// smallest unit; empty keeps the built-in default.
type Bounty struct {
	MaxCeloBounty string `toml:"MaxCeloBounty"`
	MaxCUSDBounty string `toml:"MaxCUSDBounty"`
}

// Archive selects the relational event archive.
type Archive struct {
	Enabled bool   `toml:"Enabled"`
	Driver  string `toml:"Driver"`
	DSN     string `toml:"DSN"`
}

// JWT configures bearer authentication for mutating RPC calls.
type JWT struct {
	Enable         bool   `toml:"Enable"`
	HSSecretEnv    string `toml:"HSSecretEnv"`
	Issuer         string `toml:"Issuer"`
	Audience       string `toml:"Audience"`
	MaxSkewSeconds int64  `toml:"MaxSkewSeconds"`
}

// RPC groups the JSON-RPC server settings.
type RPC struct {
	ReadHeaderTimeout int      `toml:"ReadHeaderTimeout"`
	ReadTimeout       int      `toml:"ReadTimeout"`
	WriteTimeout      int      `toml:"WriteTimeout"`
	IdleTimeout       int      `toml:"IdleTimeout"`
	MaxPageSize       uint64   `toml:"MaxPageSize"`
	TxPerMinute       float64  `toml:"TxPerMinute"`
	TxBurst           int      `toml:"TxBurst"`
	AllowedOrigins    []string `toml:"AllowedOrigins"`
	JWT               JWT      `toml:"jwt"`
}

// Logging controls the structured logger.
type Logging struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
	Compress   bool   `toml:"Compress"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Endpoint    string            `toml:"Endpoint"`
	Insecure    bool              `toml:"Insecure"`
	Headers     map[string]string `toml:"Headers"`
	Metrics     bool              `toml:"Metrics"`
	Traces      bool              `toml:"Traces"`
	SampleRatio float64           `toml:"SampleRatio"`
}
