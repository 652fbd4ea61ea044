package publisher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the publisher daemon's configuration file shape (§6 CLI,
// SPEC_FULL §1.4): `{env, engine.tick_ms, engine.max_markets_per_tick,
// engine.schema_version, signer.keyring, signer.threshold}`.
type Config struct {
	Env    string       `yaml:"env"`
	Engine EngineConfig `yaml:"engine"`
	Signer SignerConfig `yaml:"signer"`
}

type EngineConfig struct {
	TickMs            int    `yaml:"tick_ms"`
	MaxMarketsPerTick int    `yaml:"max_markets_per_tick"`
	SchemaVersion     uint16 `yaml:"schema_version"`
	DataDir           string `yaml:"data_dir"`
	IngestQueueSize   int    `yaml:"ingest_queue_size"`
}

type SignerConfig struct {
	Keyring   string `yaml:"keyring"`
	Threshold int    `yaml:"threshold"`
}

var allowedEnvs = map[string]struct{}{
	"devnet":  {},
	"testnet": {},
	"mainnet": {},
}

func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".oracle-publisher"
	}
	return filepath.Join(home, ".oracle-publisher")
}

// DefaultConfig returns the baseline configuration a fresh daemon starts
// from before any file or flag overrides are applied.
func DefaultConfig() Config {
	return Config{
		Env: "devnet",
		Engine: EngineConfig{
			TickMs:            200,
			MaxMarketsPerTick: 64,
			SchemaVersion:     1,
			DataDir:           DefaultDataDir(),
			IngestQueueSize:   1024,
		},
		Signer: SignerConfig{
			Keyring:   "",
			Threshold: 1,
		},
	}
}

// LoadConfig reads and parses a YAML config file, returning DefaultConfig
// overlaid with whatever fields the file sets.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := readFileByPath(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func ValidateConfig(cfg Config) error {
	env := strings.ToLower(strings.TrimSpace(cfg.Env))
	if _, ok := allowedEnvs[env]; !ok {
		return fmt.Errorf("invalid env %q", cfg.Env)
	}
	if strings.TrimSpace(cfg.Engine.DataDir) == "" {
		return errors.New("engine.data_dir is required")
	}
	if cfg.Engine.TickMs < 50 {
		return errors.New("engine.tick_ms must be >= 50 (floor per §4.7)")
	}
	if cfg.Engine.MaxMarketsPerTick <= 0 {
		return errors.New("engine.max_markets_per_tick must be > 0")
	}
	if cfg.Engine.SchemaVersion == 0 {
		return errors.New("engine.schema_version must be > 0")
	}
	if cfg.Engine.IngestQueueSize <= 0 {
		return errors.New("engine.ingest_queue_size must be > 0")
	}
	if cfg.Signer.Threshold <= 0 {
		return errors.New("signer.threshold must be > 0")
	}
	return nil
}

// TickInterval converts the configured tick_ms into a time.Duration.
func (c EngineConfig) TickInterval() time.Duration {
	return time.Duration(c.TickMs) * time.Millisecond
}
