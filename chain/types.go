package chain

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// PredictionMarket method names
const (
	MethodBets           = "bets"
	MethodBetsPerGambler = "betsPerGambler"
	MethodGetEntranceFee = "getEntranceFee"
	MethodPlaceBet       = "placeBet"
)

// Backend is the connection a contract handle is bound to
type Backend interface {
	bind.ContractBackend
	ChainID(ctx context.Context) (*big.Int, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// PredictionMarket ABI JSON covering the read and write surface used by the SDK
const PredictionMarketABIJSON = `[
	{
		"inputs": [{"internalType": "enum PredictionMarket.Side", "name": "", "type": "uint8"}],
		"name": "bets",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "", "type": "address"},
			{"internalType": "enum PredictionMarket.Side", "name": "", "type": "uint8"}
		],
		"name": "betsPerGambler",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "getEntranceFee",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "enum PredictionMarket.Side", "name": "_side", "type": "uint8"}],
		"name": "placeBet",
		"outputs": [],
		"stateMutability": "payable",
		"type": "function"
	}
]`

// ParseABI parses an ABI JSON array
func ParseABI(raw []byte) (abi.ABI, error) {
	parsed, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse ABI: %w", err)
	}
	return parsed, nil
}

// GetPredictionMarketABI returns the parsed PredictionMarket ABI
func GetPredictionMarketABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(PredictionMarketABIJSON))
	if err != nil {
		panic("failed to parse PredictionMarket ABI: " + err.Error())
	}
	return parsed
}
