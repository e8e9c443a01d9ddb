package predictionmarket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"

	"github.com/kaifufi/prediction-market-sdk-go/chain"
)

// Provider is the wallet and network connection the SDK runs against
type Provider interface {
	chain.Backend
	Accounts(ctx context.Context) ([]common.Address, error)
	Transactor(ctx context.Context, account common.Address) (*bind.TransactOpts, error)
}

// Client is the main SDK client. It owns one network session: the resolved
// chain, the contract handle, the active account and the last published
// snapshot. Every chain or account change advances the session epoch, and
// results computed under an older epoch are dropped.
type Client struct {
	provider     Provider
	resolver     *Resolver
	loader       *Loader
	synchronizer *Synchronizer
	submitter    *Submitter
	metrics      *Metrics
	logger       *slog.Logger
	sessionID    string
	contractName string
	onSnapshot   func(*MarketSnapshot)

	refreshInterval time.Duration
	refreshBurst    int

	mu       sync.RWMutex
	epoch    uint64
	status   Status
	key      RegistryKey
	handle   *ContractHandle
	account  common.Address
	snapshot *MarketSnapshot

	submitting atomic.Bool
}

// ClientConfig holds configuration for creating a Client
type ClientConfig struct {
	Provider            Provider
	Catalog             *Catalog
	ContractName        string
	Policy              NetworkPolicy
	RefreshInterval     time.Duration
	RefreshBurst        int
	ReceiptTimeout      time.Duration
	ReceiptPollInterval time.Duration
	Metrics             *Metrics
	Logger              *slog.Logger
	// OnSnapshot is called with every published snapshot
	OnSnapshot func(*MarketSnapshot)
}

// NewClientConfig builds a ClientConfig from a loaded Config
func NewClientConfig(cfg *Config, provider Provider, catalog *Catalog) ClientConfig {
	return ClientConfig{
		Provider:            provider,
		Catalog:             catalog,
		ContractName:        cfg.Catalog.ContractName,
		Policy:              cfg.Policy(),
		RefreshInterval:     cfg.Session.RefreshInterval.Duration,
		RefreshBurst:        cfg.Session.RefreshBurst,
		ReceiptTimeout:      cfg.Session.ReceiptTimeout.Duration,
		ReceiptPollInterval: cfg.Session.ReceiptPollInterval.Duration,
	}
}

// NewClient creates a new prediction market client
func NewClient(config ClientConfig) (*Client, error) {
	if config.Provider == nil {
		return nil, &InvalidParamError{Param: "provider", Message: "must not be nil", Err: ErrConnectionUnavailable}
	}
	if config.Catalog == nil {
		return nil, &InvalidParamError{Param: "catalog", Message: "must not be nil"}
	}

	if config.ContractName == "" {
		config.ContractName = DefaultContractName
	}
	if config.Policy.MinSupportedChainID == 0 {
		config.Policy = DefaultNetworkPolicy()
	}
	if config.RefreshInterval == 0 {
		config.RefreshInterval = 15 * time.Second
	}
	if config.RefreshBurst == 0 {
		config.RefreshBurst = 2
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	sessionID := uuid.NewString()
	logger := config.Logger.With("session", sessionID)

	return &Client{
		provider:        config.Provider,
		resolver:        NewResolver(config.Provider, config.Policy, logger),
		loader:          NewLoader(config.Catalog, config.Provider, logger),
		synchronizer:    NewSynchronizer(logger),
		submitter:       NewSubmitter(config.Provider, config.ReceiptTimeout, config.ReceiptPollInterval, logger),
		metrics:         config.Metrics,
		logger:          logger,
		sessionID:       sessionID,
		contractName:    config.ContractName,
		onSnapshot:      config.OnSnapshot,
		refreshInterval: config.RefreshInterval,
		refreshBurst:    config.RefreshBurst,
	}, nil
}

// SessionID returns the identifier attached to this client's log lines
func (c *Client) SessionID() string {
	return c.sessionID
}

// Connect resolves the chain, enumerates accounts and loads the market
// handle. Unsupported networks and missing deployments are reported through
// the returned Status; only connection failures and superseded attempts are
// returned as errors.
func (c *Client) Connect(ctx context.Context) (Status, error) {
	epoch := c.advance(func() {
		c.handle = nil
		c.snapshot = nil
		c.status = StatusDisconnected
	})
	log := c.logger.With("epoch", epoch)

	key, err := c.resolver.Resolve(ctx)
	if errors.Is(err, ErrUnsupportedNetwork) {
		return c.finishConnect(epoch, key, nil, common.Address{}, StatusUnsupportedNetwork)
	}
	if err != nil {
		log.Error("network resolution failed", "error", err)
		return StatusDisconnected, err
	}

	accounts, err := c.provider.Accounts(ctx)
	if err != nil {
		log.Error("account enumeration failed", "error", err)
		return StatusDisconnected, fmt.Errorf("%w: accounts: %v", ErrConnectionUnavailable, err)
	}

	handle, err := c.loader.Load(ctx, key, c.contractName)
	if err != nil {
		log.Error("contract load failed", "error", err)
		return StatusDisconnected, err
	}

	var account common.Address
	if len(accounts) > 0 {
		account = accounts[0]
	}

	status := StatusReady
	switch {
	case !handle.Available():
		status = StatusMarketUnavailable
	case len(accounts) == 0:
		status = StatusNoAccount
	}

	return c.finishConnect(epoch, key, handle, account, status)
}

func (c *Client) finishConnect(epoch uint64, key RegistryKey, handle *ContractHandle, account common.Address, status Status) (Status, error) {
	c.mu.Lock()
	if c.epoch != epoch {
		current := c.status
		c.mu.Unlock()
		c.metrics.recordStale()
		c.logger.Debug("dropping superseded connect", "epoch", epoch)
		return current, ErrStaleResult
	}
	c.key = key
	c.handle = handle
	c.account = account
	c.status = status
	c.mu.Unlock()

	c.metrics.setStatus(status)
	c.logger.Info("session connected",
		"epoch", epoch,
		"chain_key", key.String(),
		"status", status.String(),
		"account", account.Hex())
	return status, nil
}

// SwitchAccount makes account the active account. Any refresh in flight for
// the previous account is discarded and the snapshot is cleared.
func (c *Client) SwitchAccount(account common.Address) {
	epoch := c.advance(func() {
		c.account = account
		c.snapshot = nil
		switch {
		case c.status == StatusNoAccount && account != (common.Address{}):
			c.status = StatusReady
		case c.status == StatusReady && account == (common.Address{}):
			c.status = StatusNoAccount
		}
	})
	c.logger.Info("account switched", "epoch", epoch, "account", account.Hex())
}

// Invalidate drops the handle and snapshot, e.g. when the wallet disconnects
func (c *Client) Invalidate() {
	epoch := c.advance(func() {
		c.handle = nil
		c.snapshot = nil
		c.status = StatusDisconnected
	})
	c.metrics.setStatus(StatusDisconnected)
	c.logger.Info("session invalidated", "epoch", epoch)
}

// advance bumps the epoch and applies mutate under the lock
func (c *Client) advance(mutate func()) uint64 {
	c.mu.Lock()
	c.epoch++
	epoch := c.epoch
	mutate()
	c.mu.Unlock()

	c.metrics.setEpoch(epoch)
	return epoch
}

// Refresh synchronizes market state and publishes the snapshot if the handle
// and account are still current when the reads complete. On failure the
// previous snapshot is kept.
func (c *Client) Refresh(ctx context.Context) (*MarketSnapshot, error) {
	c.mu.RLock()
	epoch, handle, account := c.epoch, c.handle, c.account
	c.mu.RUnlock()

	start := time.Now()
	if !handle.Available() {
		c.metrics.recordRefresh("invalid_handle", time.Since(start))
		return nil, ErrHandleInvalid
	}

	snap, err := c.synchronizer.Refresh(ctx, handle, account)
	if err != nil {
		c.metrics.recordRefresh("error", time.Since(start))
		return nil, err
	}

	c.mu.Lock()
	if c.epoch != epoch || c.handle != handle || c.account != account {
		c.mu.Unlock()
		c.metrics.recordRefresh("stale", time.Since(start))
		c.metrics.recordStale()
		c.logger.Debug("dropping stale snapshot", "epoch", epoch, "handle", handle.ID())
		return nil, ErrStaleResult
	}
	c.snapshot = snap
	onSnapshot := c.onSnapshot
	c.mu.Unlock()

	c.metrics.recordRefresh("ok", time.Since(start))
	c.metrics.setPool(snap)
	if onSnapshot != nil {
		onSnapshot(snap)
	}
	return snap, nil
}

// PlaceBet submits a wager of amount whole units on side from the active
// account and waits for it to settle, then refreshes. While a wager is
// awaiting settlement further calls fail with ErrSubmissionInFlight.
func (c *Client) PlaceBet(ctx context.Context, side Side, amount float64) (*types.Receipt, error) {
	return c.placeBet(ctx, side, func(handle *ContractHandle, account common.Address) (*chain.PendingTx, error) {
		return c.submitter.Submit(ctx, handle, account, side, amount)
	})
}

// PlaceBetString is PlaceBet for amounts entered as text
func (c *Client) PlaceBetString(ctx context.Context, side Side, amount string) (*types.Receipt, error) {
	return c.placeBet(ctx, side, func(handle *ContractHandle, account common.Address) (*chain.PendingTx, error) {
		return c.submitter.SubmitString(ctx, handle, account, side, amount)
	})
}

func (c *Client) placeBet(ctx context.Context, side Side, send func(*ContractHandle, common.Address) (*chain.PendingTx, error)) (*types.Receipt, error) {
	if !c.submitting.CompareAndSwap(false, true) {
		c.metrics.recordSubmission(side, "in_flight")
		return nil, ErrSubmissionInFlight
	}
	defer c.submitting.Store(false)

	c.mu.RLock()
	handle, account := c.handle, c.account
	c.mu.RUnlock()

	pending, err := send(handle, account)
	if err != nil {
		result := "failed"
		if errors.Is(err, ErrInvalidAmount) || errors.Is(err, ErrInvalidSide) || errors.Is(err, ErrHandleInvalid) {
			result = "rejected"
		}
		c.metrics.recordSubmission(side, result)
		return nil, err
	}

	receipt, err := pending.Wait(ctx)
	if err != nil {
		c.metrics.recordSubmission(side, "unsettled")
		c.logger.Error("wager did not settle", "tx_hash", pending.Hash().Hex(), "error", err)
		return receipt, err
	}
	c.metrics.recordSubmission(side, "settled")

	if _, err := c.Refresh(ctx); err != nil && !errors.Is(err, ErrStaleResult) {
		c.logger.Warn("refresh after wager failed", "error", err)
	}
	return receipt, nil
}

// Submitting reports whether a wager is awaiting settlement
func (c *Client) Submitting() bool {
	return c.submitting.Load()
}

// Snapshot returns the last published snapshot, nil before the first refresh
func (c *Client) Snapshot() *MarketSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// Status returns the session status
func (c *Client) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Handle returns the current contract handle
func (c *Client) Handle() *ContractHandle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handle
}

// Account returns the active account
func (c *Client) Account() common.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.account
}

// ChainKey returns the registry key of the connected chain
func (c *Client) ChainKey() RegistryKey {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.key
}

// Epoch returns the current session epoch
func (c *Client) Epoch() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch
}
