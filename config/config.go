package config

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/compact-experiment/compact/internal/compact"
	"github.com/compact-experiment/compact/internal/network"
	"github.com/ethereum/go-ethereum/common"
)

// Config holds all configurable parameters for compactd
type Config struct {
	Port          int          `json:"port"`
	Domain        DomainConfig `json:"domain"`
	Signer        SignerConfig `json:"signer"`
	RegistryPath  string       `json:"registry_path"`
	RegistryCache int          `json:"registry_cache_bytes"`
	BatchWorkers  int          `json:"batch_workers"`
	SignTimeoutMs int          `json:"sign_timeout_ms"`
}

// DomainConfig is the EIP-712 domain compacts are signed under.
type DomainConfig struct {
	Name              string `json:"name"`
	Version           string `json:"version"`
	ChainID           uint64 `json:"chain_id"`
	VerifyingContract string `json:"verifying_contract"`
}

// SignerConfig selects how compacts are signed. Exactly one of KeyHex
// (in-process key) or URL (remote JSON-RPC signer with Account) is used.
type SignerConfig struct {
	KeyHex  string         `json:"key_hex,omitempty"`
	URL     string         `json:"url,omitempty"`
	Account string         `json:"account,omitempty"`
	Network network.Config `json:"network"`
}

// Load reads and parses the config.json file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// LoadDefault loads the default config from config.json in the current directory
func LoadDefault() (*Config, error) {
	return Load("config/config.json")
}

// Default returns the settings used when no config file is present.
func Default() *Config {
	return &Config{
		Port: 8090,
		Domain: DomainConfig{
			Name:    "The Compact",
			Version: "1",
			ChainID: 1,
		},
		BatchWorkers:  4,
		SignTimeoutMs: 10_000,
	}
}

// CompactDomain converts the domain settings into a signing domain.
func (d DomainConfig) CompactDomain() (compact.Domain, error) {
	if d.VerifyingContract != "" && !common.IsHexAddress(d.VerifyingContract) {
		return compact.Domain{}, fmt.Errorf("invalid verifying contract %q", d.VerifyingContract)
	}
	domain := compact.Domain{
		Name:              d.Name,
		Version:           d.Version,
		ChainID:           new(big.Int).SetUint64(d.ChainID),
		VerifyingContract: common.HexToAddress(d.VerifyingContract),
	}
	if err := domain.Validate(); err != nil {
		return compact.Domain{}, err
	}
	return domain, nil
}
