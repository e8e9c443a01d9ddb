package predictionmarket

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kaifufi/prediction-market-sdk-go/chain"
	"github.com/kaifufi/prediction-market-sdk-go/chain/chaintest"
)

func TestLoaderLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("dev deployment", func(t *testing.T) {
		backend := chaintest.New(1337).Deploy(devMarket)
		h, err := NewLoader(testCatalog(t), backend, discardLogger()).Load(ctx, devKey(), DefaultContractName)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if !h.Available() {
			t.Fatalf("handle unavailable: %v", h.Reason())
		}
		if h.Address() != devMarket {
			t.Errorf("address = %s, want newest deployment %s", h.Address().Hex(), devMarket.Hex())
		}
		if h.Key() != devKey() || h.Name() != DefaultContractName {
			t.Errorf("handle key/name = %s/%s", h.Key(), h.Name())
		}
		if h.Descriptor() == nil || h.ID() == 0 {
			t.Error("available handle should carry a descriptor and id")
		}
	})

	t.Run("handles are distinct", func(t *testing.T) {
		backend := chaintest.New(1337).Deploy(devMarket)
		l := NewLoader(testCatalog(t), backend, discardLogger())
		h1, _ := l.Load(ctx, devKey(), DefaultContractName)
		h2, _ := l.Load(ctx, devKey(), DefaultContractName)
		if h1.ID() == h2.ID() {
			t.Errorf("two loads share id %d", h1.ID())
		}
	})

	tests := []struct {
		name       string
		key        RegistryKey
		contract   string
		setup      func(b *chaintest.Backend)
		wantReason error
	}{
		{
			name:       "absent chain",
			key:        RegistryKey{Kind: KeyPublic, ChainID: 42},
			contract:   DefaultContractName,
			wantReason: ErrNoDeploymentFound,
		},
		{
			name:       "absent contract",
			key:        devKey(),
			contract:   "Token",
			wantReason: ErrNoDeploymentFound,
		},
		{
			name:       "missing artifact",
			key:        RegistryKey{Kind: KeyPublic, ChainID: 100},
			contract:   DefaultContractName,
			wantReason: ErrArtifactUnavailable,
		},
		{
			name:       "unsupported key",
			key:        RegistryKey{Kind: KeyUnsupported, ChainID: 1},
			contract:   DefaultContractName,
			wantReason: ErrUnsupportedNetwork,
		},
		{
			name:       "no code at address",
			key:        devKey(),
			contract:   DefaultContractName,
			setup:      func(b *chaintest.Backend) {},
			wantReason: ErrNoDeploymentFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := chaintest.New(1337)
			if tt.setup == nil {
				backend.Deploy(devMarket)
			} else {
				tt.setup(backend)
			}

			h, err := NewLoader(testCatalog(t), backend, discardLogger()).Load(ctx, tt.key, tt.contract)
			if err != nil {
				t.Fatalf("Load returned error %v, want unavailable handle", err)
			}
			if h.Available() {
				t.Fatal("handle should be unavailable")
			}
			if !errors.Is(h.Reason(), tt.wantReason) {
				t.Errorf("reason = %v, want %v", h.Reason(), tt.wantReason)
			}
			if backend.TotalCalls() != 0 {
				t.Errorf("unavailable load made %d contract calls", backend.TotalCalls())
			}
		})
	}
}

func TestLoaderConnectionErrors(t *testing.T) {
	ctx := context.Background()

	backend := chaintest.New(1337)
	backend.FailCode(errors.New("connection reset"))
	_, err := NewLoader(testCatalog(t), backend, discardLogger()).Load(ctx, devKey(), DefaultContractName)
	if !errors.Is(err, ErrConnectionUnavailable) {
		t.Errorf("got %v, want ErrConnectionUnavailable", err)
	}

	_, err = NewLoader(testCatalog(t), nil, discardLogger()).Load(ctx, devKey(), DefaultContractName)
	if !errors.Is(err, ErrConnectionUnavailable) {
		t.Errorf("nil backend: got %v, want ErrConnectionUnavailable", err)
	}
}

func TestLoaderArtifactWithoutMarketMethods(t *testing.T) {
	mapJSON := []byte(fmt.Sprintf(`{"dev":{"PredictionMarket":[%q]}}`, devMarket.Hex()))
	token := fmt.Sprintf(`{"address":%q,"abi":[{"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]}`, devMarket.Hex())

	c, err := ParseCatalog(mapJSON, map[string][]byte{"dev/" + devMarket.Hex(): []byte(token)})
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}

	h, err := NewLoader(c, chaintest.New(1337).Deploy(devMarket), discardLogger()).Load(context.Background(), devKey(), DefaultContractName)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if h.Available() || !errors.Is(h.Reason(), ErrArtifactUnavailable) || !errors.Is(h.Reason(), chain.ErrMissingMethod) {
		t.Errorf("reason = %v, want artifact unavailable from missing method", h.Reason())
	}
}

func TestNilHandle(t *testing.T) {
	var h *ContractHandle
	if h.Available() || h.ID() != 0 {
		t.Error("nil handle should be unavailable with id 0")
	}
}
