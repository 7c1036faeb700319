package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// moneyScale is the number of decimal places kept when realized PnL is
// applied to a balance. Marks keep full precision; rounding happens once,
// at the realization event, so repeated accumulation cannot drift.
const moneyScale = 2

var one = decimal.NewFromInt(1)

// UnrealizedPnL computes the leveraged profit of a position at the given
// price. Long positions profit as price rises, shorts as it falls:
//
//	long:  (current - entry) * quantity * leverage
//	short: (entry - current) * quantity * leverage
//
// Pure and deterministic. Realized PnL is the same formula evaluated at the
// close price.
func UnrealizedPnL(side string, entryPrice, currentPrice, quantity, leverage decimal.Decimal) (decimal.Decimal, error) {
	if quantity.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("quantity must be positive, got %s: %w", quantity, ErrInvalidInput)
	}
	if leverage.LessThan(one) {
		return decimal.Zero, fmt.Errorf("leverage must be at least 1, got %s: %w", leverage, ErrInvalidInput)
	}

	var diff decimal.Decimal
	switch side {
	case SideLong:
		diff = currentPrice.Sub(entryPrice)
	case SideShort:
		diff = entryPrice.Sub(currentPrice)
	default:
		return decimal.Zero, fmt.Errorf("unknown side %q: %w", side, ErrInvalidInput)
	}

	return diff.Mul(quantity).Mul(leverage), nil
}

// RealizedPnL evaluates the PnL formula at the close price and rounds it to
// money precision for application to a balance.
func RealizedPnL(side string, entryPrice, closePrice, quantity, leverage decimal.Decimal) (decimal.Decimal, error) {
	pnl, err := UnrealizedPnL(side, entryPrice, closePrice, quantity, leverage)
	if err != nil {
		return decimal.Zero, err
	}
	return pnl.Round(moneyScale), nil
}

// MarginRequired returns the capital reserved for a leveraged position:
// notional value divided by leverage.
func MarginRequired(price, quantity, leverage decimal.Decimal) decimal.Decimal {
	return price.Mul(quantity).Div(leverage)
}
