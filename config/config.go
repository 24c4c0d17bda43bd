// Package config loads the deployment parameters of a staking ledger.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"stakeledger/crypto"
)

type Config struct {
	DataDir string `toml:"DataDir"`
	// StakingAsset is the asset stakes are denominated in.
	StakingAsset string `toml:"StakingAsset"`
	Owner        string `toml:"Owner"`
	// Authority is the initial co-signing identity. When empty it is taken
	// from the multisig section or, failing that, the keystore at
	// AuthorityKeystorePath.
	Authority             string          `toml:"Authority"`
	AuthorityKeystorePath string          `toml:"AuthorityKeystorePath"`
	Domain                DomainConfig    `toml:"domain"`
	Multisig              *MultisigConfig `toml:"multisig,omitempty"`
	Genesis               []Allocation    `toml:"genesis"`
}

// DomainConfig names the signing domain. Custody doubles as the verifying
// contract of every authorization.
type DomainConfig struct {
	Name    string `toml:"Name"`
	Version string `toml:"Version"`
	ChainID string `toml:"ChainID"`
	Custody string `toml:"Custody"`
}

type MultisigConfig struct {
	Owners    []string `toml:"Owners"`
	Threshold int      `toml:"Threshold"`
}

// Allocation mints Amount of Asset to Holder when the ledger is first
// initialised. ApproveCustody also grants custody an allowance of the same
// amount so the holder can stake straight away.
type Allocation struct {
	Asset          string `toml:"Asset"`
	Holder         string `toml:"Holder"`
	Amount         string `toml:"Amount"`
	ApproveCustody bool   `toml:"ApproveCustody"`
}

// Load reads the configuration at path, writing a development default when
// the file does not exist.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown key %s", path, undecoded[0].String())
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./stake-data"
	}
	if strings.TrimSpace(cfg.Domain.Version) == "" {
		cfg.Domain.Version = "1"
	}
	if cfg.AuthorityKeystorePath != "" && !filepath.IsAbs(cfg.AuthorityKeystorePath) {
		cfg.AuthorityKeystorePath = filepath.Join(filepath.Dir(path), cfg.AuthorityKeystorePath)
	}
	return cfg, nil
}

// createDefault writes a single-node development configuration whose
// authority key lives in an unencrypted-passphrase keystore next to it.
func createDefault(path string) (*Config, error) {
	authority, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	owner, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, authority, ""); err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:               "./stake-data",
		StakingAsset:          "0x0000000000000000000000000000000000005354",
		Owner:                 owner.PubKey().Address().Hex(),
		AuthorityKeystorePath: keystorePath,
		Domain: DomainConfig{
			Name:    "StakeLedger",
			Version: "1",
			ChainID: "1337",
			Custody: "0x000000000000000000000000000000000000c057",
		},
		Genesis: []Allocation{},
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
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

func defaultKeystorePath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), "authority.keystore")
}
