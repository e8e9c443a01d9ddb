package predictionmarket

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Side represents one of the two outcomes of the market
type Side uint8

const (
	SideA Side = iota
	SideB
)

// Sides lists both outcomes in contract index order
var Sides = [2]Side{SideA, SideB}

// Valid reports whether s is one of the two outcomes
func (s Side) Valid() bool {
	return s == SideA || s == SideB
}

// Index returns the contract enum index of the side
func (s Side) Index() uint8 {
	return uint8(s)
}

func (s Side) String() string {
	switch s {
	case SideA:
		return "A"
	case SideB:
		return "B"
	default:
		return "invalid"
	}
}

// Status is the state of a session after Connect
type Status int

const (
	StatusDisconnected Status = iota
	StatusReady
	StatusUnsupportedNetwork
	StatusMarketUnavailable
	StatusNoAccount
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusUnsupportedNetwork:
		return "unsupported_network"
	case StatusMarketUnavailable:
		return "market_unavailable"
	case StatusNoAccount:
		return "no_account"
	default:
		return "disconnected"
	}
}

// MarketSnapshot is the display model produced by one synchronization pass.
// Amounts are in whole units.
type MarketSnapshot struct {
	Pool         map[Side]decimal.Decimal
	Personal     map[Side]decimal.Decimal
	MinimumWager decimal.Decimal
	Account      common.Address
	HandleID     uint64
	FetchedAt    time.Time
}

// Total returns the sum of both pools
func (s *MarketSnapshot) Total() decimal.Decimal {
	return s.Pool[SideA].Add(s.Pool[SideB])
}

// Share returns the fraction of the total pool backing side, or zero when
// the pool is empty
func (s *MarketSnapshot) Share(side Side) decimal.Decimal {
	total := s.Total()
	if total.IsZero() {
		return decimal.Zero
	}
	return s.Pool[side].DivRound(total, 18)
}

// PersonalTotal returns the account's wagers across both sides
func (s *MarketSnapshot) PersonalTotal() decimal.Decimal {
	return s.Personal[SideA].Add(s.Personal[SideB])
}

// Equal reports whether two snapshots carry numerically equal amounts
func (s *MarketSnapshot) Equal(other *MarketSnapshot) bool {
	if s == nil || other == nil {
		return s == other
	}
	for _, side := range Sides {
		if !s.Pool[side].Equal(other.Pool[side]) || !s.Personal[side].Equal(other.Personal[side]) {
			return false
		}
	}
	return s.MinimumWager.Equal(other.MinimumWager)
}

// WagerRequest is a validated wager ready for submission
type WagerRequest struct {
	Side      Side
	AmountWei *big.Int
}
