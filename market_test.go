package predictionmarket

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/kaifufi/prediction-market-sdk-go/chain"
	"github.com/kaifufi/prediction-market-sdk-go/chain/chaintest"
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000_000_000_000))
}

func loadDevHandle(t *testing.T, backend *chaintest.Backend) *ContractHandle {
	t.Helper()
	h, err := NewLoader(testCatalog(t), backend, discardLogger()).Load(context.Background(), devKey(), DefaultContractName)
	if err != nil || !h.Available() {
		t.Fatalf("Load: %v (available=%v)", err, h.Available())
	}
	return h
}

func TestSynchronizerRefresh(t *testing.T) {
	backend := chaintest.New(1337).Deploy(devMarket)
	gambler := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")

	backend.SetPool(0, ether(2))
	backend.SetPool(1, ether(1))
	backend.SetPersonal(gambler, 0, big.NewInt(500_000_000_000_000_000))
	backend.SetFee(big.NewInt(10_000_000_000_000_000))

	h := loadDevHandle(t, backend)
	s := NewSynchronizer(discardLogger())

	snap, err := s.Refresh(context.Background(), h, gambler)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	checks := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"pool A", snap.Pool[SideA], "2"},
		{"pool B", snap.Pool[SideB], "1"},
		{"personal A", snap.Personal[SideA], "0.5"},
		{"personal B", snap.Personal[SideB], "0"},
		{"minimum wager", snap.MinimumWager, "0.01"},
	}
	for _, c := range checks {
		if !c.got.Equal(decimal.RequireFromString(c.want)) {
			t.Errorf("%s = %s, want %s", c.name, c.got, c.want)
		}
	}
	if snap.Account != gambler || snap.HandleID != h.ID() {
		t.Errorf("snapshot account/handle = %s/%d", snap.Account.Hex(), snap.HandleID)
	}

	for _, method := range []string{chain.MethodBets, chain.MethodBetsPerGambler} {
		if got := backend.Calls(method); got != 2 {
			t.Errorf("%s called %d times, want 2", method, got)
		}
	}
	if got := backend.Calls(chain.MethodGetEntranceFee); got != 1 {
		t.Errorf("getEntranceFee called %d times, want 1", got)
	}

	again, err := s.Refresh(context.Background(), h, gambler)
	if err != nil {
		t.Fatalf("second Refresh: %v", err)
	}
	if !again.Equal(snap) {
		t.Error("refresh without state change produced a different snapshot")
	}
}

func TestSynchronizerRefreshErrors(t *testing.T) {
	t.Run("failed read", func(t *testing.T) {
		backend := chaintest.New(1337).Deploy(devMarket)
		h := loadDevHandle(t, backend)
		backend.FailMethod(chain.MethodBetsPerGambler, errors.New("execution reverted"))

		snap, err := NewSynchronizer(discardLogger()).Refresh(context.Background(), h, common.Address{})
		if !errors.Is(err, ErrContractCallFailed) {
			t.Errorf("got %v, want ErrContractCallFailed", err)
		}
		if snap != nil {
			t.Error("failed refresh should not return a partial snapshot")
		}
	})

	t.Run("unavailable handle", func(t *testing.T) {
		unavailable := unavailableHandle(devKey(), DefaultContractName, ErrNoDeploymentFound)
		for _, h := range []*ContractHandle{nil, unavailable} {
			if _, err := NewSynchronizer(discardLogger()).Refresh(context.Background(), h, common.Address{}); !errors.Is(err, ErrHandleInvalid) {
				t.Errorf("got %v, want ErrHandleInvalid", err)
			}
		}
	})
}
