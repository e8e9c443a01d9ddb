package predictionmarket

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
	if cfg.Policy() != DefaultNetworkPolicy() {
		t.Errorf("policy = %+v", cfg.Policy())
	}
	if cfg.Session.RefreshInterval.Duration != 15*time.Second {
		t.Errorf("refresh interval = %s", cfg.Session.RefreshInterval)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
log_level = "debug"

[network]
rpc_url = "http://node:8545"
min_supported_chain_id = 100
dev_chain_id = 31337

[wallet]
private_keys = ["0xabc"]

[catalog]
source = "http"
base_url = "https://example.org/deployments"

[session]
refresh_interval = "5s"
receipt_timeout = "1m"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Network.RPCURL != "http://node:8545" || cfg.Network.MinSupportedChainID != 100 || cfg.Network.DevChainID != 31337 {
		t.Errorf("network = %+v", cfg.Network)
	}
	if cfg.Catalog.Source != CatalogSourceHTTP || cfg.Catalog.ContractName != DefaultContractName {
		t.Errorf("catalog = %+v", cfg.Catalog)
	}
	if cfg.Session.RefreshInterval.Duration != 5*time.Second || cfg.Session.ReceiptTimeout.Duration != time.Minute {
		t.Errorf("session = %+v", cfg.Session)
	}
	if cfg.Session.ReceiptPollInterval.Duration != 2*time.Second {
		t.Errorf("unset poll interval lost its default: %s", cfg.Session.ReceiptPollInterval)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
[network]
rpc_url = "http://from-file:8545"
`)
	t.Setenv("PMSDK_RPC_URL", "http://from-env:8545")
	t.Setenv("PMSDK_PRIVATE_KEYS", " 0x01, ,0x02 ")
	t.Setenv("PMSDK_DEV_CHAIN_ID", "31337")
	t.Setenv("PMSDK_REFRESH_INTERVAL", "250ms")
	t.Setenv("PMSDK_REFRESH_BURST", "not-a-number")
	t.Setenv("PMSDK_S3_USE_SSL", "true")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Network.RPCURL != "http://from-env:8545" {
		t.Errorf("rpc_url = %s", cfg.Network.RPCURL)
	}
	if len(cfg.Wallet.PrivateKeys) != 2 || cfg.Wallet.PrivateKeys[1] != "0x02" {
		t.Errorf("private keys = %v", cfg.Wallet.PrivateKeys)
	}
	if cfg.Network.DevChainID != 31337 {
		t.Errorf("dev chain id = %d", cfg.Network.DevChainID)
	}
	if cfg.Session.RefreshInterval.Duration != 250*time.Millisecond {
		t.Errorf("refresh interval = %s", cfg.Session.RefreshInterval)
	}
	if cfg.Session.RefreshBurst != 2 {
		t.Errorf("malformed override replaced refresh burst: %d", cfg.Session.RefreshBurst)
	}
	if !cfg.Catalog.S3.UseSSL {
		t.Error("use_ssl override ignored")
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := LoadConfig(writeConfig(t, `[session]
refresh_interval = "soon"`)); err == nil {
		t.Error("expected error for malformed duration")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "loud"
	cfg.Network.RPCURL = ""
	cfg.Catalog.Source = CatalogSourceS3
	cfg.Catalog.S3.Bucket = ""
	cfg.Session.RefreshBurst = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"log_level", "rpc_url", "s3.bucket", "refresh_burst"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("validation error missing %q: %v", want, err)
		}
	}
}

func TestNewClientConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Session.RefreshInterval.Duration = time.Second

	cc := NewClientConfig(&cfg, nil, &Catalog{})
	if cc.RefreshInterval != time.Second || cc.RefreshBurst != 2 || cc.ContractName != DefaultContractName {
		t.Errorf("client config = %+v", cc)
	}
	if cc.Policy != DefaultNetworkPolicy() {
		t.Errorf("policy = %+v", cc.Policy)
	}
}
