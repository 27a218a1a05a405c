package yield

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Money renders a USD amount with two decimal places. Callers keep full
// precision internally and call this exactly once per output field.
func Money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// ParseAmount parses a non-negative decimal string.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, NewValidationError("invalid amount "+quote(s), err)
	}
	if d.IsNegative() {
		return decimal.Zero, NewValidationError("negative amount "+quote(s), nil)
	}
	return d, nil
}

// AmountFloat parses s and returns it as a float64 for ranking and cost math.
func AmountFloat(s string) (float64, error) {
	d, err := ParseAmount(s)
	if err != nil {
		return 0, err
	}
	f, _ := d.Float64()
	return f, nil
}

// SumMoney adds 2dp money strings exactly. Unparseable entries count as zero.
func SumMoney(values ...string) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		d, err := decimal.NewFromString(v)
		if err != nil {
			continue
		}
		total = total.Add(d)
	}
	return total
}

// ToBaseUnits converts a human-readable amount to on-chain units, truncating
// anything beyond the token's precision.
func ToBaseUnits(amount string, decimals int32) (*big.Int, error) {
	d, err := ParseAmount(amount)
	if err != nil {
		return nil, err
	}
	return d.Shift(decimals).Truncate(0).BigInt(), nil
}

func quote(s string) string {
	return `"` + s + `"`
}
