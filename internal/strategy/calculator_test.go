package strategy

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func TestBaseAmountFor(t *testing.T) {
	tests := []struct {
		name    string
		budget  string
		price   string
		want    string
		wantErr error
	}{
		{name: "btc for 200", budget: "200", price: "13310.00", want: "0.01502629"},
		{name: "pokus example", budget: "10", price: "7599.99", want: "0.00131579"},
		{name: "exact division", budget: "100", price: "4", want: "25"},
		{name: "truncates instead of rounding up", budget: "2", price: "3", want: "0.66666666"},
		{name: "zero price", budget: "200", price: "0", wantErr: ErrNonPositivePrice},
		{name: "negative price", budget: "200", price: "-1", wantErr: ErrNonPositivePrice},
		{name: "zero budget", budget: "0", price: "10", wantErr: ErrNonPositiveBudget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BaseAmountFor(dec(tt.budget), dec(tt.price))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assertDecimal(t, tt.want, got)
			assert.Equal(t, -Scale, got.Exponent())
		})
	}
}

func TestSellPriceFor(t *testing.T) {
	tests := []struct {
		name    string
		fill    string
		gain    string
		want    string
		wantErr error
	}{
		{name: "two percent", fill: "13350.00", gain: "0.02", want: "13617"},
		{name: "break even", fill: "13350.00", gain: "0", want: "13350"},
		{name: "rounds up below half", fill: "1.00000001", gain: "0.00000001", want: "1.00000003"},
		{name: "rounds up sub unit", fill: "0.00000003", gain: "0.5", want: "0.00000005"},
		{name: "zero fill price", fill: "0", gain: "0.02", wantErr: ErrNonPositivePrice},
		{name: "negative gain", fill: "100", gain: "-0.01", wantErr: ErrNegativeGain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SellPriceFor(dec(tt.fill), dec(tt.gain))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assertDecimal(t, tt.want, got)
			assert.Equal(t, -Scale, got.Exponent())
		})
	}
}

func randomDecimal(r *rand.Rand, maxUnits int64, exp int32) decimal.Decimal {
	return decimal.New(r.Int63n(maxUnits)+1, exp)
}

func TestBaseAmountFor_NeverOvershootsBudget(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for i := 0; i < 2000; i++ {
		budget := randomDecimal(r, 10_000_000, -2)
		price := randomDecimal(r, 1_000_000_000_000, -int32(r.Intn(9)))

		amount, err := BaseAmountFor(budget, price)
		require.NoError(t, err)

		assert.Equal(t, -Scale, amount.Exponent())
		assert.Truef(t, amount.Mul(price).LessThanOrEqual(budget),
			"budget %s price %s amount %s overshoots", budget, price, amount)
		assert.Truef(t, amount.Add(unit).Mul(price).GreaterThan(budget),
			"budget %s price %s amount %s is not the largest affordable amount", budget, price, amount)
	}
}

func TestSellPriceFor_MeetsGainFloor(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	one := decimal.NewFromInt(1)

	for i := 0; i < 2000; i++ {
		fill := randomDecimal(r, 1_000_000_000_000, -int32(r.Intn(9)))
		gain := decimal.New(r.Int63n(100_000_000), -int32(r.Intn(9)+1))

		price, err := SellPriceFor(fill, gain)
		require.NoError(t, err)

		floor := fill.Mul(one.Add(gain))
		assert.Equal(t, -Scale, price.Exponent())
		assert.Truef(t, price.GreaterThanOrEqual(floor),
			"fill %s gain %s price %s below floor %s", fill, gain, price, floor)
		assert.Truef(t, price.Sub(unit).LessThan(floor),
			"fill %s gain %s price %s rounds up by more than one unit", fill, gain, price)
	}
}
