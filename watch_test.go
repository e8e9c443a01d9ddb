package predictionmarket

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kaifufi/prediction-market-sdk-go/chain"
)

func TestClientWatchFollowsWalletEvents(t *testing.T) {
	backend, provider, accounts := newTestProvider(t, 2)
	c := newTestClient(t, provider, nil)

	if _, err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan WalletEvent)
	done := make(chan error, 1)
	go func() { done <- c.Watch(ctx, events) }()

	eventually(t, func() bool { return c.Snapshot() != nil }, "initial refresh")

	events <- WalletEvent{Type: EventAccountsChanged, Accounts: []string{accounts[1].Hex()}}
	eventually(t, func() bool {
		snap := c.Snapshot()
		return c.Account() == accounts[1] && snap != nil && snap.Account == accounts[1]
	}, "refresh for switched account")

	backend.SetChainID(1)
	events <- WalletEvent{Type: EventChainChanged, ChainID: "0x1"}
	eventually(t, func() bool { return c.Status() == StatusUnsupportedNetwork }, "unsupported status after chain change")
	if c.Handle() != nil || c.Snapshot() != nil {
		t.Error("handle or snapshot survived the chain change")
	}

	backend.SetChainID(1337)
	events <- WalletEvent{Type: EventConnect}
	eventually(t, func() bool { return c.Status() == StatusReady && c.Snapshot() != nil }, "reconnect on connect event")

	events <- WalletEvent{Type: EventDisconnect}
	eventually(t, func() bool { return c.Status() == StatusDisconnected }, "disconnect")

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Watch returned %v, want context.Canceled", err)
	}
}

func TestClientWatchThrottlesRefresh(t *testing.T) {
	backend, provider, accounts := newTestProvider(t, 1)
	c, err := NewClient(ClientConfig{
		Provider:        provider,
		Catalog:         testCatalog(t),
		RefreshInterval: time.Hour,
		RefreshBurst:    1,
		Logger:          discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan WalletEvent)
	done := make(chan error, 1)
	go func() { done <- c.Watch(ctx, events) }()

	for i := 0; i < 5; i++ {
		events <- WalletEvent{Type: EventAccountsChanged, Accounts: []string{accounts[0].Hex()}}
	}
	cancel()
	<-done

	if got := backend.Calls(chain.MethodGetEntranceFee); got != 1 {
		t.Errorf("refresh passes = %d, want 1", got)
	}
}

func TestClientWatchClosedEvents(t *testing.T) {
	_, provider, _ := newTestProvider(t, 1)
	c := newTestClient(t, provider, nil)
	if _, err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	events := make(chan WalletEvent)
	close(events)
	if err := c.Watch(ctx, events); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Watch returned %v, want DeadlineExceeded", err)
	}
	if c.Snapshot() == nil {
		t.Error("Watch should keep polling after the event stream closes")
	}
}
