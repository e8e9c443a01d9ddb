package predictionmarket

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Synchronizer reads market state through a contract handle
type Synchronizer struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewSynchronizer creates a new Synchronizer
func NewSynchronizer(logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{logger: logger, now: time.Now}
}

// Refresh reads both pool totals, the account's totals on both sides and the
// entrance fee concurrently and returns a new snapshot. Any failed read fails
// the whole pass with ErrContractCallFailed.
func (s *Synchronizer) Refresh(ctx context.Context, handle *ContractHandle, account common.Address) (*MarketSnapshot, error) {
	if !handle.Available() {
		return nil, ErrHandleInvalid
	}
	market := handle.market

	var (
		pool     [2]*big.Int
		personal [2]*big.Int
		fee      *big.Int
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, side := range Sides {
		g.Go(func() error {
			v, err := market.Bets(gctx, side.Index())
			if err != nil {
				return fmt.Errorf("bets(%s): %w", side, err)
			}
			pool[side] = v
			return nil
		})
		g.Go(func() error {
			v, err := market.BetsPerGambler(gctx, account, side.Index())
			if err != nil {
				return fmt.Errorf("betsPerGambler(%s): %w", side, err)
			}
			personal[side] = v
			return nil
		})
	}
	g.Go(func() error {
		v, err := market.EntranceFee(gctx)
		if err != nil {
			return fmt.Errorf("getEntranceFee: %w", err)
		}
		fee = v
		return nil
	})

	if err := g.Wait(); err != nil {
		s.logger.Warn("market refresh failed",
			"chain_key", handle.Key().String(),
			"address", handle.Address().Hex(),
			"error", err)
		return nil, fmt.Errorf("%w: %v", ErrContractCallFailed, err)
	}

	snap := &MarketSnapshot{
		Pool:         make(map[Side]decimal.Decimal, len(Sides)),
		Personal:     make(map[Side]decimal.Decimal, len(Sides)),
		MinimumWager: FromWei(fee),
		Account:      account,
		HandleID:     handle.ID(),
		FetchedAt:    s.now(),
	}
	for _, side := range Sides {
		snap.Pool[side] = FromWei(pool[side])
		snap.Personal[side] = FromWei(personal[side])
	}
	return snap, nil
}
