package predictionmarket

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/kaifufi/prediction-market-sdk-go/chain"
)

// Signer produces transact options for an account
type Signer interface {
	Transactor(ctx context.Context, account common.Address) (*bind.TransactOpts, error)
}

// Submitter validates and sends wagers
type Submitter struct {
	signer              Signer
	logger              *slog.Logger
	receiptTimeout      time.Duration
	receiptPollInterval time.Duration
}

// NewSubmitter creates a new Submitter
func NewSubmitter(signer Signer, receiptTimeout, receiptPollInterval time.Duration, logger *slog.Logger) *Submitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{
		signer:              signer,
		logger:              logger,
		receiptTimeout:      receiptTimeout,
		receiptPollInterval: receiptPollInterval,
	}
}

// Submit sends a single placeBet transaction for amount whole units on side.
// Invalid input is rejected before any network call. The transaction is never
// retried; the caller must not resubmit until the returned PendingTx settles.
func (s *Submitter) Submit(ctx context.Context, handle *ContractHandle, account common.Address, side Side, amount float64) (*chain.PendingTx, error) {
	wei, err := ToWei(amount)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, handle, account, side, wei)
}

// SubmitString is Submit for amounts entered as text
func (s *Submitter) SubmitString(ctx context.Context, handle *ContractHandle, account common.Address, side Side, amount string) (*chain.PendingTx, error) {
	wei, err := ParseWei(amount)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, handle, account, side, wei)
}

func (s *Submitter) submit(ctx context.Context, handle *ContractHandle, account common.Address, side Side, wei *big.Int) (*chain.PendingTx, error) {
	if !side.Valid() {
		return nil, &InvalidParamError{Param: "side", Message: fmt.Sprintf("must be A or B, got: %d", side), Err: ErrInvalidSide}
	}
	if !handle.Available() {
		return nil, ErrHandleInvalid
	}

	req := WagerRequest{Side: side, AmountWei: wei}

	opts, err := s.signer.Transactor(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("transactor for %s: %w", account.Hex(), err)
	}
	opts.Value = req.AmountWei

	tx, err := handle.market.PlaceBet(opts, req.Side.Index())
	if err != nil {
		s.logger.Error("wager submission failed",
			"side", req.Side.String(),
			"value_wei", req.AmountWei.String(),
			"account", account.Hex(),
			"error", err)
		return nil, err
	}

	s.logger.Info("wager submitted",
		"side", req.Side.String(),
		"value_wei", req.AmountWei.String(),
		"account", account.Hex(),
		"tx_hash", tx.Hash().Hex())

	return chain.NewPendingTx(tx, handle.backend, s.receiptTimeout, s.receiptPollInterval), nil
}
