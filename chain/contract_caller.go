package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

var (
	// ErrUnknownAccount means no signing key is held for the requested account
	ErrUnknownAccount = errors.New("unknown account")

	// ErrTransactionReverted means the transaction was mined with a failed status
	ErrTransactionReverted = errors.New("transaction reverted")

	// ErrMissingMethod means a contract ABI lacks a method the SDK calls
	ErrMissingMethod = errors.New("abi missing method")
)

// KeyedProvider is a wallet backed by an RPC connection and a set of local
// private keys. It enumerates the key addresses as accounts and signs
// transactions for them.
type KeyedProvider struct {
	Backend
	keys     map[common.Address]*ecdsa.PrivateKey
	accounts []common.Address
	closer   func()
}

// DialKeyedProvider connects to rpcURL and loads the given hex private keys
func DialKeyedProvider(ctx context.Context, rpcURL string, privateKeysHex []string) (*KeyedProvider, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}

	p, err := NewKeyedProvider(client, privateKeysHex)
	if err != nil {
		client.Close()
		return nil, err
	}
	p.closer = client.Close
	return p, nil
}

// NewKeyedProvider wraps an existing backend
func NewKeyedProvider(backend Backend, privateKeysHex []string) (*KeyedProvider, error) {
	p := &KeyedProvider{
		Backend: backend,
		keys:    make(map[common.Address]*ecdsa.PrivateKey, len(privateKeysHex)),
	}

	for i, hexKey := range privateKeysHex {
		privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid private key #%d: %w", i, err)
		}
		addr := crypto.PubkeyToAddress(privateKey.PublicKey)
		if _, dup := p.keys[addr]; dup {
			continue
		}
		p.keys[addr] = privateKey
		p.accounts = append(p.accounts, addr)
	}

	return p, nil
}

// Accounts returns the signing accounts in configuration order
func (p *KeyedProvider) Accounts(ctx context.Context) ([]common.Address, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]common.Address, len(p.accounts))
	copy(out, p.accounts)
	return out, nil
}

// Transactor returns transact options that sign for account on the connected chain
func (p *KeyedProvider) Transactor(ctx context.Context, account common.Address) (*bind.TransactOpts, error) {
	privateKey, ok := p.keys[account]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, account.Hex())
	}

	chainID, err := p.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	opts, err := bind.NewKeyedTransactorWithChainID(privateKey, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	opts.Context = ctx
	return opts, nil
}

// Close closes the RPC connection if the provider dialed it
func (p *KeyedProvider) Close() {
	if p.closer != nil {
		p.closer()
	}
}

// PredictionMarket is a PredictionMarket deployment bound to a backend
type PredictionMarket struct {
	address  common.Address
	abi      abi.ABI
	contract *bind.BoundContract
}

// NewPredictionMarket binds a deployment's ABI and address to backend
func NewPredictionMarket(address common.Address, parsed abi.ABI, backend bind.ContractBackend) (*PredictionMarket, error) {
	for _, name := range []string{MethodBets, MethodBetsPerGambler, MethodGetEntranceFee, MethodPlaceBet} {
		if _, ok := parsed.Methods[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingMethod, name)
		}
	}

	return &PredictionMarket{
		address:  address,
		abi:      parsed,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
	}, nil
}

// Address returns the deployment address
func (m *PredictionMarket) Address() common.Address {
	return m.address
}

// Bets returns the pool total for a side in wei
func (m *PredictionMarket) Bets(ctx context.Context, side uint8) (*big.Int, error) {
	return m.callUint(ctx, MethodBets, m.sideArg(MethodBets, 0, side))
}

// BetsPerGambler returns the total account has wagered on a side in wei
func (m *PredictionMarket) BetsPerGambler(ctx context.Context, account common.Address, side uint8) (*big.Int, error) {
	return m.callUint(ctx, MethodBetsPerGambler, account, m.sideArg(MethodBetsPerGambler, 1, side))
}

// EntranceFee returns the minimum wager in wei
func (m *PredictionMarket) EntranceFee(ctx context.Context) (*big.Int, error) {
	return m.callUint(ctx, MethodGetEntranceFee)
}

// PlaceBet sends a payable placeBet(side) transaction carrying opts.Value
func (m *PredictionMarket) PlaceBet(opts *bind.TransactOpts, side uint8) (*types.Transaction, error) {
	tx, err := m.contract.Transact(opts, MethodPlaceBet, m.sideArg(MethodPlaceBet, 0, side))
	if err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", MethodPlaceBet, err)
	}
	return tx, nil
}

func (m *PredictionMarket) callUint(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	var out []interface{}
	if err := m.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%s returned %d values, want 1", method, len(out))
	}
	value, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s returned %T, want *big.Int", method, out[0])
	}
	return value, nil
}

// sideArg encodes the side for the declared parameter type. Solidity enums are
// uint8 in the ABI; wider integer declarations take a *big.Int.
func (m *PredictionMarket) sideArg(method string, index int, side uint8) interface{} {
	inputs := m.abi.Methods[method].Inputs
	if index < len(inputs) {
		t := inputs[index].Type
		if t.T == abi.UintTy && t.Size == 8 {
			return side
		}
	}
	return new(big.Int).SetUint64(uint64(side))
}

// PendingTx is a submitted transaction awaiting settlement
type PendingTx struct {
	tx           *types.Transaction
	backend      bind.DeployBackend
	timeout      time.Duration
	pollInterval time.Duration
}

// NewPendingTx wraps tx. Zero timeout and poll interval fall back to 120s and 2s.
func NewPendingTx(tx *types.Transaction, backend bind.DeployBackend, timeout, pollInterval time.Duration) *PendingTx {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &PendingTx{tx: tx, backend: backend, timeout: timeout, pollInterval: pollInterval}
}

// Hash returns the transaction hash
func (p *PendingTx) Hash() common.Hash {
	return p.tx.Hash()
}

// Transaction returns the signed transaction
func (p *PendingTx) Transaction() *types.Transaction {
	return p.tx
}

// Wait polls for the receipt until it is mined, the timeout elapses or ctx is
// done. A mined transaction with a failed status returns the receipt and
// ErrTransactionReverted.
func (p *PendingTx) Wait(ctx context.Context) (*types.Receipt, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	txHash := p.tx.Hash()
	var lastErr error
	for {
		receipt, err := p.backend.TransactionReceipt(timeoutCtx, txHash)
		if err != nil {
			lastErr = err
		}
		if err == nil && receipt != nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return receipt, fmt.Errorf("%w: tx hash %s", ErrTransactionReverted, txHash.Hex())
			}
			return receipt, nil
		}

		select {
		case <-timeoutCtx.Done():
			return nil, fmt.Errorf("timeout waiting for transaction receipt %s: %w", txHash.Hex(), errors.Join(timeoutCtx.Err(), lastErr))
		case <-time.After(p.pollInterval):
		}
	}
}
