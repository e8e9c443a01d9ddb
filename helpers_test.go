package predictionmarket

import (
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/kaifufi/prediction-market-sdk-go/chain"
	"github.com/kaifufi/prediction-market-sdk-go/chain/chaintest"
)

var (
	devMarket    = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	oldDevMarket = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
	gnosisMarket = common.HexToAddress("0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0")
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func artifactJSON(address common.Address) []byte {
	return []byte(fmt.Sprintf(`{"contractName":"PredictionMarket","address":%q,"abi":%s}`, address.Hex(), chain.PredictionMarketABIJSON))
}

// testCatalogFiles is a catalog tree with two dev deployments (newest first)
// and one deployment on chain 100 whose artifact is missing.
func testCatalogFiles() (mapJSON []byte, artifacts map[string][]byte) {
	mapJSON = []byte(fmt.Sprintf(`{
		"dev": {"PredictionMarket": [%q, %q]},
		"100": {"PredictionMarket": [{"address": %q}]}
	}`, devMarket.Hex(), oldDevMarket.Hex(), gnosisMarket.Hex()))

	artifacts = map[string][]byte{
		"dev/" + devMarket.Hex() + ".json":    artifactJSON(devMarket),
		"dev/" + oldDevMarket.Hex() + ".json": artifactJSON(oldDevMarket),
	}
	return mapJSON, artifacts
}

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	mapJSON, artifacts := testCatalogFiles()
	c, err := ParseCatalog(mapJSON, artifacts)
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	return c
}

func newTestKey(t *testing.T) (string, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return hex.EncodeToString(crypto.FromECDSA(key)), crypto.PubkeyToAddress(key.PublicKey)
}

// newTestProvider returns a dev-chain backend with the dev market deployed
// and a keyed provider over it holding n accounts.
func newTestProvider(t *testing.T, n int) (*chaintest.Backend, *chain.KeyedProvider, []common.Address) {
	t.Helper()
	backend := chaintest.New(uint64(DefaultDevChainID)).Deploy(devMarket)

	keys := make([]string, n)
	accounts := make([]common.Address, n)
	for i := range keys {
		keys[i], accounts[i] = newTestKey(t)
	}

	provider, err := chain.NewKeyedProvider(backend, keys)
	if err != nil {
		t.Fatalf("NewKeyedProvider: %v", err)
	}
	return backend, provider, accounts
}

func devKey() RegistryKey {
	return RegistryKey{Kind: KeyDev, ChainID: DefaultDevChainID}
}
