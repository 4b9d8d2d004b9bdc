package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits used for order prices and amounts.
const Scale int32 = 8

var unit = decimal.New(1, -Scale)

// BaseAmountFor returns how much base currency the counter currency budget
// buys at lastTradePrice. The quotient is truncated to Scale digits so the
// order never costs more than the budget.
func BaseAmountFor(counterBudget, lastTradePrice decimal.Decimal) (decimal.Decimal, error) {
	if !counterBudget.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrNonPositiveBudget, counterBudget)
	}
	if !lastTradePrice.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: last trade price %s", ErrNonPositivePrice, lastTradePrice)
	}

	amount, _ := counterBudget.QuoRem(lastTradePrice, Scale)
	return amount, nil
}

// SellPriceFor returns fillPrice raised by minimumGainFraction, rounded up to
// Scale digits so the gain is never below the requested fraction.
func SellPriceFor(fillPrice, minimumGainFraction decimal.Decimal) (decimal.Decimal, error) {
	if !fillPrice.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: fill price %s", ErrNonPositivePrice, fillPrice)
	}
	if minimumGainFraction.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrNegativeGain, minimumGainFraction)
	}

	target := fillPrice.Add(fillPrice.Mul(minimumGainFraction))
	return ceilToScale(target), nil
}

// ceilToScale rounds a positive value up to exactly Scale fractional digits.
func ceilToScale(v decimal.Decimal) decimal.Decimal {
	q, r := v.QuoRem(decimal.NewFromInt(1), Scale)
	if r.IsPositive() {
		q = q.Add(unit)
	}
	return q
}
