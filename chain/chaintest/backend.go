// Package chaintest provides an in-memory chain.Backend serving a
// PredictionMarket deployment for tests.
package chaintest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/kaifufi/prediction-market-sdk-go/chain"
)

// Backend answers PredictionMarket calls from in-memory state. Calldata is
// decoded with the real ABI so the encoding produced by bindings is checked.
type Backend struct {
	mu sync.Mutex

	chainID    *big.Int
	chainIDErr error
	abi        abi.ABI
	code       map[common.Address][]byte
	codeErr    error

	pool     [2]*big.Int
	personal map[common.Address][2]*big.Int
	fee      *big.Int
	callErr  map[string]error
	calls    map[string]int

	gate    chan struct{}
	entered chan string

	sent       []*types.Transaction
	sendErr    error
	autoMine   bool
	status     uint64
	receipts   map[common.Hash]*types.Receipt
	blockCount int64
}

var _ chain.Backend = (*Backend)(nil)

// New returns a backend on chainID with the PredictionMarket ABI and no
// deployed code.
func New(chainID uint64) *Backend {
	return &Backend{
		chainID:  new(big.Int).SetUint64(chainID),
		abi:      chain.GetPredictionMarketABI(),
		code:     make(map[common.Address][]byte),
		personal: make(map[common.Address][2]*big.Int),
		callErr:  make(map[string]error),
		calls:    make(map[string]int),
		receipts: make(map[common.Hash]*types.Receipt),
		status:   types.ReceiptStatusSuccessful,
		autoMine: true,
	}
}

// Deploy marks address as holding contract code
func (b *Backend) Deploy(address common.Address) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.code[address] = []byte{0x60, 0x80, 0x60, 0x40}
	return b
}

// SetChainID changes the reported chain id, e.g. to simulate a network switch
func (b *Backend) SetChainID(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chainID = new(big.Int).SetUint64(id)
}

// FailChainID makes ChainID return err
func (b *Backend) FailChainID(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chainIDErr = err
}

// FailCode makes CodeAt return err
func (b *Backend) FailCode(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.codeErr = err
}

// SetPool sets the pool total of side index in wei
func (b *Backend) SetPool(side uint8, wei *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pool[side] = wei
}

// SetPersonal sets the total account wagered on side index in wei
func (b *Backend) SetPersonal(account common.Address, side uint8, wei *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.personal[account]
	p[side] = wei
	b.personal[account] = p
}

// SetFee sets the entrance fee in wei
func (b *Backend) SetFee(wei *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fee = wei
}

// FailMethod makes calls to method return err; nil clears it
func (b *Backend) FailMethod(method string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.callErr, method)
		return
	}
	b.callErr[method] = err
}

// Hold blocks every contract call until the returned release func is called.
// The name of each held call is sent on the returned channel.
func (b *Backend) Hold() (entered <-chan string, release func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	gate := make(chan struct{})
	ch := make(chan string, 64)
	b.gate, b.entered = gate, ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			b.gate, b.entered = nil, nil
			b.mu.Unlock()
			close(gate)
		})
	}
}

// Calls returns how many times method was called
func (b *Backend) Calls(method string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[method]
}

// TotalCalls returns the number of contract calls of any method
func (b *Backend) TotalCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		n += c
	}
	return n
}

// SetAutoMine controls whether sent transactions get a receipt immediately
func (b *Backend) SetAutoMine(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.autoMine = on
}

// SetReceiptStatus sets the status of receipts for subsequently mined transactions
func (b *Backend) SetReceiptStatus(status uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = status
}

// FailSend makes SendTransaction return err
func (b *Backend) FailSend(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sendErr = err
}

// Mine produces a receipt for a sent transaction
func (b *Backend) Mine(hash common.Hash) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mineLocked(hash)
}

func (b *Backend) mineLocked(hash common.Hash) {
	b.blockCount++
	b.receipts[hash] = &types.Receipt{
		Status:      b.status,
		TxHash:      hash,
		BlockNumber: big.NewInt(b.blockCount),
	}
}

// Sent returns the transactions sent so far
func (b *Backend) Sent() []*types.Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*types.Transaction, len(b.sent))
	copy(out, b.sent)
	return out
}

// DecodePlaceBet returns the side argument encoded in a placeBet transaction
func (b *Backend) DecodePlaceBet(tx *types.Transaction) (uint8, error) {
	data := tx.Data()
	if len(data) < 4 {
		return 0, errors.New("short calldata")
	}
	method, err := b.abi.MethodById(data[:4])
	if err != nil {
		return 0, err
	}
	if method.Name != chain.MethodPlaceBet {
		return 0, fmt.Errorf("unexpected method %s", method.Name)
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return 0, err
	}
	side, ok := args[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("side decoded as %T", args[0])
	}
	return side, nil
}

func (b *Backend) ChainID(ctx context.Context) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.chainIDErr != nil {
		return nil, b.chainIDErr
	}
	return new(big.Int).Set(b.chainID), nil
}

func (b *Backend) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.codeErr != nil {
		return nil, b.codeErr
	}
	return b.code[contract], nil
}

func (b *Backend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if len(call.Data) < 4 {
		return nil, errors.New("short calldata")
	}
	method, err := b.abi.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(call.Data[4:])
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.calls[method.Name]++
	gate, entered := b.gate, b.entered
	b.mu.Unlock()

	if gate != nil {
		entered <- method.Name
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.callErr[method.Name]; err != nil {
		return nil, err
	}

	var value *big.Int
	switch method.Name {
	case chain.MethodBets:
		value = b.pool[args[0].(uint8)]
	case chain.MethodBetsPerGambler:
		value = b.personal[args[0].(common.Address)][args[1].(uint8)]
	case chain.MethodGetEntranceFee:
		value = b.fee
	default:
		return nil, fmt.Errorf("method %s is not callable", method.Name)
	}
	if value == nil {
		value = new(big.Int)
	}
	return method.Outputs.Pack(value)
}

func (b *Backend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &types.Header{Number: big.NewInt(b.blockCount)}, nil
}

func (b *Backend) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return b.CodeAt(ctx, account, nil)
}

func (b *Backend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return uint64(len(b.sent)), nil
}

func (b *Backend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (b *Backend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (b *Backend) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	return 100_000, nil
}

func (b *Backend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sendErr != nil {
		return b.sendErr
	}
	b.sent = append(b.sent, tx)
	if b.autoMine {
		b.mineLocked(tx.Hash())
	}
	return nil
}

func (b *Backend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r, ok := b.receipts[txHash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func (b *Backend) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (b *Backend) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return nil, errors.New("chaintest: subscriptions not supported")
}
