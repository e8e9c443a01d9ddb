package predictionmarket

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// ChainID represents a blockchain chain ID
type ChainID uint64

const (
	// DefaultMinSupportedChainID is the lowest chain id the market is deployed on.
	// Chain ids below it (mainnet, ropsten, rinkeby, goerli) are rejected.
	DefaultMinSupportedChainID ChainID = 42

	// DefaultDevChainID is the chain id reported by local development nodes
	DefaultDevChainID ChainID = 1337

	// DefaultContractName is the logical name of the market in the deployment map
	DefaultContractName = "PredictionMarket"
)

// Catalog sources accepted by CatalogConfig.Source
const (
	CatalogSourceDir  = "dir"
	CatalogSourceHTTP = "http"
	CatalogSourceS3   = "s3"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by PMSDK_* environment variables.
type Config struct {
	Network  NetworkConfig `toml:"network"`
	Wallet   WalletConfig  `toml:"wallet"`
	Catalog  CatalogConfig `toml:"catalog"`
	Session  SessionConfig `toml:"session"`
	LogLevel string        `toml:"log_level"`
}

// NetworkConfig holds the RPC endpoint and the network support policy.
type NetworkConfig struct {
	RPCURL              string  `toml:"rpc_url"`
	MinSupportedChainID ChainID `toml:"min_supported_chain_id"`
	DevChainID          ChainID `toml:"dev_chain_id"`
}

// WalletConfig holds the signing keys and the optional wallet event bridge.
type WalletConfig struct {
	PrivateKeys []string `toml:"private_keys"`
	BridgeURL   string   `toml:"bridge_url"`
}

// CatalogConfig selects where the deployment map and artifacts are read from.
type CatalogConfig struct {
	Source       string   `toml:"source"`
	Dir          string   `toml:"dir"`
	BaseURL      string   `toml:"base_url"`
	ContractName string   `toml:"contract_name"`
	S3           S3Config `toml:"s3"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// SessionConfig holds refresh and settlement timing.
type SessionConfig struct {
	RefreshInterval     duration `toml:"refresh_interval"`
	RefreshBurst        int      `toml:"refresh_burst"`
	ReceiptTimeout      duration `toml:"receipt_timeout"`
	ReceiptPollInterval duration `toml:"receipt_poll_interval"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with values suitable for a local
// development chain.
func Defaults() Config {
	return Config{
		Network: NetworkConfig{
			RPCURL:              "http://127.0.0.1:8545",
			MinSupportedChainID: DefaultMinSupportedChainID,
			DevChainID:          DefaultDevChainID,
		},
		Catalog: CatalogConfig{
			Source:       CatalogSourceDir,
			Dir:          "artifacts/deployments",
			ContractName: DefaultContractName,
			S3: S3Config{
				Region:         "us-east-1",
				ForcePathStyle: true,
			},
		},
		Session: SessionConfig{
			RefreshInterval:     duration{15 * time.Second},
			RefreshBurst:        2,
			ReceiptTimeout:      duration{120 * time.Second},
			ReceiptPollInterval: duration{2 * time.Second},
		},
		LogLevel: "info",
	}
}

// LoadConfig reads a TOML configuration file at path, merges it on top of the
// defaults and applies PMSDK_* environment overrides. An empty path skips the
// file. The result is not validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Network.RPCURL, "PMSDK_RPC_URL")
	setChainID(&cfg.Network.MinSupportedChainID, "PMSDK_MIN_SUPPORTED_CHAIN_ID")
	setChainID(&cfg.Network.DevChainID, "PMSDK_DEV_CHAIN_ID")

	setStringSlice(&cfg.Wallet.PrivateKeys, "PMSDK_PRIVATE_KEYS")
	setStr(&cfg.Wallet.BridgeURL, "PMSDK_WALLET_BRIDGE_URL")

	setStr(&cfg.Catalog.Source, "PMSDK_CATALOG_SOURCE")
	setStr(&cfg.Catalog.Dir, "PMSDK_CATALOG_DIR")
	setStr(&cfg.Catalog.BaseURL, "PMSDK_CATALOG_BASE_URL")
	setStr(&cfg.Catalog.ContractName, "PMSDK_CONTRACT_NAME")
	setStr(&cfg.Catalog.S3.Endpoint, "PMSDK_S3_ENDPOINT")
	setStr(&cfg.Catalog.S3.Region, "PMSDK_S3_REGION")
	setStr(&cfg.Catalog.S3.Bucket, "PMSDK_S3_BUCKET")
	setStr(&cfg.Catalog.S3.Prefix, "PMSDK_S3_PREFIX")
	setStr(&cfg.Catalog.S3.AccessKey, "PMSDK_S3_ACCESS_KEY")
	setStr(&cfg.Catalog.S3.SecretKey, "PMSDK_S3_SECRET_KEY")
	setBool(&cfg.Catalog.S3.UseSSL, "PMSDK_S3_USE_SSL")
	setBool(&cfg.Catalog.S3.ForcePathStyle, "PMSDK_S3_FORCE_PATH_STYLE")

	setDuration(&cfg.Session.RefreshInterval, "PMSDK_REFRESH_INTERVAL")
	setInt(&cfg.Session.RefreshBurst, "PMSDK_REFRESH_BURST")
	setDuration(&cfg.Session.ReceiptTimeout, "PMSDK_RECEIPT_TIMEOUT")
	setDuration(&cfg.Session.ReceiptPollInterval, "PMSDK_RECEIPT_POLL_INTERVAL")

	setStr(&cfg.LogLevel, "PMSDK_LOG_LEVEL")
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks the configuration and returns all problems at once.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}
	if c.Network.RPCURL == "" {
		errs = append(errs, "network: rpc_url must not be empty")
	}
	if c.Network.MinSupportedChainID == 0 {
		errs = append(errs, "network: min_supported_chain_id must be positive")
	}
	if c.Catalog.ContractName == "" {
		errs = append(errs, "catalog: contract_name must not be empty")
	}

	switch c.Catalog.Source {
	case CatalogSourceDir:
		if c.Catalog.Dir == "" {
			errs = append(errs, "catalog: dir must be set for source \"dir\"")
		}
	case CatalogSourceHTTP:
		if c.Catalog.BaseURL == "" {
			errs = append(errs, "catalog: base_url must be set for source \"http\"")
		}
	case CatalogSourceS3:
		if c.Catalog.S3.Bucket == "" {
			errs = append(errs, "catalog: s3.bucket must be set for source \"s3\"")
		}
		if c.Catalog.S3.Region == "" {
			errs = append(errs, "catalog: s3.region must be set for source \"s3\"")
		}
	default:
		errs = append(errs, fmt.Sprintf("catalog: unknown source %q (valid: dir, http, s3)", c.Catalog.Source))
	}

	if c.Session.RefreshInterval.Duration <= 0 {
		errs = append(errs, "session: refresh_interval must be positive")
	}
	if c.Session.RefreshBurst < 1 {
		errs = append(errs, "session: refresh_burst must be >= 1")
	}
	if c.Session.ReceiptTimeout.Duration <= 0 {
		errs = append(errs, "session: receipt_timeout must be positive")
	}
	if c.Session.ReceiptPollInterval.Duration <= 0 {
		errs = append(errs, "session: receipt_poll_interval must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Policy returns the network support policy described by the config.
func (c *Config) Policy() NetworkPolicy {
	return NetworkPolicy{
		MinSupportedChainID: c.Network.MinSupportedChainID,
		DevChainID:          c.Network.DevChainID,
	}
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setChainID(dst *ChainID, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = ChainID(n)
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
