package predictionmarket

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// WeiDecimals is the number of decimals of the native unit
	WeiDecimals = 18
)

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// FromWei converts a smallest-unit integer into whole units without loss
func FromWei(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -WeiDecimals)
}

// ToWei converts a whole-unit amount into smallest units, rounding to the
// nearest integer. The amount must be positive and finite.
func ToWei(amount float64) (*big.Int, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, &InvalidParamError{Param: "amount", Message: fmt.Sprintf("must be finite, got: %v", amount), Err: ErrInvalidAmount}
	}
	if amount <= 0 {
		return nil, &InvalidParamError{Param: "amount", Message: fmt.Sprintf("must be positive, got: %v", amount), Err: ErrInvalidAmount}
	}
	return decimalToWei(decimal.NewFromFloat(amount))
}

// ParseWei converts a decimal string in whole units into smallest units
func ParseWei(amount string) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return nil, &InvalidParamError{Param: "amount", Message: fmt.Sprintf("not a number: %q", amount), Err: ErrInvalidAmount}
	}
	if !d.IsPositive() {
		return nil, &InvalidParamError{Param: "amount", Message: fmt.Sprintf("must be positive, got: %s", d), Err: ErrInvalidAmount}
	}
	return decimalToWei(d)
}

func decimalToWei(amount decimal.Decimal) (*big.Int, error) {
	wei := amount.Shift(WeiDecimals).Round(0).BigInt()

	if wei.Sign() <= 0 {
		return nil, &InvalidParamError{Param: "amount", Message: "calculated amount is zero", Err: ErrInvalidAmount}
	}
	if wei.Cmp(maxUint256) > 0 {
		return nil, &InvalidParamError{Param: "amount", Message: fmt.Sprintf("too large for uint256: %s", wei), Err: ErrInvalidAmount}
	}
	return wei, nil
}
