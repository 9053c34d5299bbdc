package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

// app struct config
type app = struct {
	Name        string        `yaml:"name"`
	Port        string        `yaml:"port"`
	PrintRoutes bool          `yaml:"print-routes"`
	Prefork     bool          `yaml:"prefork"`
	Production  bool          `yaml:"production"`
	IdleTimeout time.Duration `yaml:"idle-timeout"`
}

// db struct config
type db = struct {
	Gorm struct {
		DisableForeignKeyConstraintWhenMigrating bool `yaml:"disable-foreign-key-constraint-when-migrating"`
	}
	Postgres struct {
		DSN string `yaml:"dsn"`
	}
}

// log struct config
type logger = struct {
	TimeFormat string `yaml:"time-format"`
	Level      int    `yaml:"level"`
	Prettier   bool   `yaml:"prettier"`
}

type Config struct {
	App    app
	DB     db
	Logger logger
	Market Market `yaml:"market"`
}

// Market carries the marketplace feature flags and well-known addresses.
// Every component receives this struct at construction; there is no
// process-wide mutable configuration.
type Market struct {
	CanAddCollections bool     `yaml:"can-add-collections" koanf:"can-add-collections"`
	CanEditToken      bool     `yaml:"can-edit-token" koanf:"can-edit-token"`
	CanTransferTokens bool     `yaml:"can-transfer-tokens" koanf:"can-transfer-tokens"`
	CollectionIDs     []string `yaml:"collection-ids" koanf:"collection-ids"`
	SentinelOwner     string   `yaml:"sentinel-owner" koanf:"sentinel-owner"`
	QuoteID           int      `yaml:"quote-id" koanf:"quote-id"`
	IndexerURL        string   `yaml:"indexer-url" koanf:"indexer-url"`
}

// Chain carries the Substrate node settings.
type Chain struct {
	URL        string `yaml:"url" koanf:"url"`
	Seed       string `yaml:"seed" koanf:"seed"`
	SS58Prefix uint16 `yaml:"ss58-prefix" koanf:"ss58-prefix"`
}

// Bridge carries the Ethereum-side settings of the cross-chain relay.
type Bridge struct {
	RPCURL          string `yaml:"rpc-url" koanf:"rpc-url"`
	ContractAddress string `yaml:"contract-address" koanf:"contract-address"`
	PrivateKey      string `yaml:"private-key" koanf:"private-key"`
	SourceChainID   int64  `yaml:"source-chain-id" koanf:"source-chain-id"`
	GasLimit        uint64 `yaml:"gas-limit" koanf:"gas-limit"`
}

// OpenSea carries the OpenSea-compatible API settings.
type OpenSea struct {
	BaseURL          string `yaml:"base-url" koanf:"base-url"`
	APIKey           string `yaml:"api-key" koanf:"api-key"`
	ExchangeContract string `yaml:"exchange-contract" koanf:"exchange-contract"`
}

// NewMarket unmarshals the market section of the loaded configuration.
func NewMarket(k *koanf.Koanf) Market {
	var m Market
	_ = k.Unmarshal("market", &m)
	if m.SentinelOwner == "" {
		m.SentinelOwner = "5C4hrfjw9DjXZTzV3MwzrrAr9P1MJhSrvWGWqi1eSuyUpnhM"
	}
	return m
}

// NewChain unmarshals the chain section of the loaded configuration.
func NewChain(k *koanf.Koanf) Chain {
	var c Chain
	_ = k.Unmarshal("chain", &c)
	if c.SS58Prefix == 0 {
		c.SS58Prefix = 42
	}
	return c
}

// NewBridge unmarshals the bridge section of the loaded configuration.
func NewBridge(k *koanf.Koanf) Bridge {
	var b Bridge
	_ = k.Unmarshal("bridge", &b)
	return b
}

// NewOpenSea unmarshals the opensea section of the loaded configuration.
func NewOpenSea(k *koanf.Koanf) OpenSea {
	var o OpenSea
	_ = k.Unmarshal("opensea", &o)
	return o
}

// func to parse config
func ParseConfig(file []byte) (*Config, error) {
	var (
		contents *Config
		err      error
	)
	err = yaml.Unmarshal(file, &contents)

	return contents, err
}

// func to parse address
func ParseAddress(raw string) (hostname, port string) {
	if i := strings.LastIndex(raw, ":"); i >= 0 {
		return raw[:i], raw[i+1:]
	}

	return raw, ""
}
