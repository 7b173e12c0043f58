package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds the node's runtime settings.
type Config struct {
	RPCAddress     string `toml:"RPCAddress"`
	DataDir        string `toml:"DataDir"`
	HermesEndpoint string `toml:"HermesEndpoint"`
	Mint           string `toml:"Mint"`
	AdminAddress   string `toml:"AdminAddress"`
	FeePercent     uint8  `toml:"FeePercent"`
	Env            string `toml:"Env"`
	LogFile        string `toml:"LogFile"`
}

const (
	defaultRPCAddress = "127.0.0.1:8645"
	defaultDataDir    = "./contest-data"
	defaultEnv        = "local"
)

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = defaultRPCAddress
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = defaultDataDir
	}
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = defaultEnv
	}
}

// Validate checks the settings a node cannot run without.
func (cfg *Config) Validate() error {
	if cfg == nil {
		return fmt.Errorf("config: nil config")
	}
	if cfg.FeePercent >= 100 {
		return fmt.Errorf("config: FeePercent must be below 100, got %d", cfg.FeePercent)
	}
	if admin := strings.TrimSpace(cfg.AdminAddress); admin != "" {
		if _, err := ParseAddress(admin); err != nil {
			return fmt.Errorf("config: invalid AdminAddress: %w", err)
		}
	}
	return nil
}

// Admin decodes the configured admin address. Returns a zero address when the
// field is unset so the caller can fall back to an existing registry.
func (cfg *Config) Admin() ([20]byte, bool, error) {
	admin := strings.TrimSpace(cfg.AdminAddress)
	if admin == "" {
		return [20]byte{}, false, nil
	}
	addr, err := ParseAddress(admin)
	if err != nil {
		return [20]byte{}, false, err
	}
	return addr, true, nil
}

// ParseAddress decodes a 20-byte hex address, with or without an 0x prefix.
func ParseAddress(s string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, err
	}
	if len(raw) != len(addr) {
		return addr, fmt.Errorf("address must be %d bytes, got %d", len(addr), len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress: defaultRPCAddress,
		DataDir:    defaultDataDir,
		Env:        defaultEnv,
		FeePercent: 5,
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
