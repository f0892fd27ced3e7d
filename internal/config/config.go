package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/st3v3nmw/beacon-dns-lists/internal/types"
)

type Config struct {
	DataDir    string            `yaml:"data_dir" json:"data_dir"`
	Inputs     []InputConfig     `yaml:"inputs" json:"inputs" validate:"dive"`
	Output     *OutputConfig     `yaml:"output" json:"output" validate:"required"`
	Rules      *RulesConfig      `yaml:"rules" json:"rules" validate:"required"`
	Classify   *ClassifyConfig   `yaml:"classify" json:"classify" validate:"required"`
	Validation *ValidationConfig `yaml:"validation" json:"validation" validate:"required"`
	Pipeline   *PipelineConfig   `yaml:"pipeline" json:"pipeline" validate:"required"`
	Daemon     *DaemonConfig     `yaml:"daemon" json:"daemon" validate:"required"`
}

type InputConfig struct {
	Name   string       `yaml:"name" json:"name"`
	Path   string       `yaml:"path" json:"path" validate:"required"`
	Action types.Action `yaml:"action" json:"action" validate:"omitempty,oneof=block allow"`
}

type OutputConfig struct {
	Block  string             `yaml:"block" json:"block" validate:"required"`
	Allow  string             `yaml:"allow" json:"allow" validate:"required"`
	Format types.OutputFormat `yaml:"format" json:"format" validate:"oneof=domains adblock"`
}

type RulesConfig struct {
	// Preserve element-hiding, scriptlet & other non-DNS lines verbatim
	// instead of dropping them.
	KeepUnparseable bool     `yaml:"keep_unparseable" json:"keep_unparseable"`
	ExcludeSuffixes []string `yaml:"exclude_suffixes" json:"exclude_suffixes"`
}

type ClassifyConfig struct {
	Policy types.Policy `yaml:"policy" json:"policy" validate:"oneof=whitelist blacklist"`
	Depth  int          `yaml:"depth" json:"depth" validate:"min=0,max=16"`
}

type ValidationConfig struct {
	Enabled     bool          `yaml:"enabled" json:"enabled"`
	Threshold   int           `yaml:"threshold" json:"threshold" validate:"min=1"`
	Retries     int           `yaml:"retries" json:"retries" validate:"min=0,max=10"`
	Backoff     time.Duration `yaml:"backoff" json:"backoff" validate:"min=0"`
	Concurrency int           `yaml:"concurrency" json:"concurrency" validate:"min=1"`
	CacheTTL    time.Duration `yaml:"cache_ttl" json:"cache_ttl" validate:"min=1s"`
	CacheSize   int           `yaml:"cache_size" json:"cache_size" validate:"min=1"`
	AlwaysValid []string      `yaml:"always_valid" json:"always_valid"`
	Pools       []PoolConfig  `yaml:"pools" json:"pools" validate:"dive"`
}

type PoolConfig struct {
	Name     string         `yaml:"name" json:"name" validate:"required"`
	Suffixes []string       `yaml:"suffixes" json:"suffixes"`
	Servers  []ServerConfig `yaml:"servers" json:"servers" validate:"min=1,dive"`
}

type ServerConfig struct {
	Address string        `yaml:"address" json:"address" validate:"required"`
	Weight  int           `yaml:"weight" json:"weight" validate:"min=0"`
	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"min=0"`
}

// Protocol infers the transport from the address scheme.
func (s ServerConfig) Protocol() types.Protocol {
	switch {
	case strings.HasPrefix(s.Address, "https://"):
		return types.ProtocolDoH
	case strings.HasPrefix(s.Address, "tls://"):
		return types.ProtocolDoT
	default:
		return types.ProtocolUDP
	}
}

// QueryTimeout returns the configured timeout or the protocol default.
func (s ServerConfig) QueryTimeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}

	switch s.Protocol() {
	case types.ProtocolDoH:
		return 5 * time.Second
	case types.ProtocolDoT:
		return 3 * time.Second
	default:
		return 1500 * time.Millisecond
	}
}

type PipelineConfig struct {
	Workers          int           `yaml:"workers" json:"workers" validate:"min=1"`
	BatchSize        int           `yaml:"batch_size" json:"batch_size" validate:"min=1"`
	ProgressInterval time.Duration `yaml:"progress_interval" json:"progress_interval" validate:"min=0"`
}

type DaemonConfig struct {
	Interval    time.Duration `yaml:"interval" json:"interval" validate:"min=1m"`
	MetricsFile string        `yaml:"metrics_file" json:"metrics_file"`
}

// Default returns a config with every option set to its documented default.
func Default() *Config {
	return &Config{
		DataDir: "data",
		Output: &OutputConfig{
			Block:  "data/rules/block.txt",
			Allow:  "data/rules/allow.txt",
			Format: types.OutputFormatDomains,
		},
		Rules: &RulesConfig{
			KeepUnparseable: false,
			ExcludeSuffixes: []string{
				".cloudfront.net", ".akamai.net", ".cdn.cloudflare.net",
				".local", ".internal", ".localhost",
			},
		},
		Classify: &ClassifyConfig{
			Policy: types.PolicyWhitelist,
			Depth:  3,
		},
		Validation: &ValidationConfig{
			Enabled:     true,
			Threshold:   1,
			Retries:     2,
			Backoff:     time.Second,
			Concurrency: 4,
			CacheTTL:    72 * time.Hour,
			CacheSize:   500_000,
			Pools:       getDefaultPools(),
		},
		Pipeline: &PipelineConfig{
			Workers:          10,
			BatchSize:        10_000,
			ProgressInterval: 10 * time.Second,
		},
		Daemon: &DaemonConfig{
			Interval: 24 * time.Hour,
		},
	}
}

func Read(filePath string) (*Config, error) {
	file, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	return Parse(file)
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.precompute()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) precompute() {
	for i := range c.Inputs {
		if c.Inputs[i].Action == "" {
			c.Inputs[i].Action = types.ActionBlock
		}
		if c.Inputs[i].Name == "" {
			c.Inputs[i].Name = c.Inputs[i].Path
		}
	}

	c.Rules.ExcludeSuffixes = lowerAll(c.Rules.ExcludeSuffixes)
	c.Validation.AlwaysValid = lowerAll(c.Validation.AlwaysValid)
	for i := range c.Validation.Pools {
		c.Validation.Pools[i].Suffixes = lowerAll(c.Validation.Pools[i].Suffixes)
		for j := range c.Validation.Pools[i].Servers {
			if c.Validation.Pools[i].Servers[j].Weight == 0 {
				c.Validation.Pools[i].Servers[j].Weight = 1
			}
		}
	}
}

func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.Validation.Enabled && len(c.Validation.Pools) == 0 {
		return fmt.Errorf("invalid config: validation is enabled but no server pools are configured")
	}

	return nil
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
