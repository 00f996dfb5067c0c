// Package money implements the arithmetic behind order line items and
// order totals. All values are fixed-point decimals.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Zero is the zero amount.
var Zero = decimal.Zero

// NormalizeQuantity floors a quantity at 1.
func NormalizeQuantity(quantity int) int {
	if quantity < 1 {
		return 1
	}
	return quantity
}

// NonNegative returns d, or zero when d is negative.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return Zero
	}
	return d
}

// LineTotal computes quantity*unitPrice - discount. Quantity floors at 1
// and negative prices or discounts count as zero. The result may be
// negative when the discount exceeds the gross line value.
func LineTotal(quantity int, unitPrice, discount decimal.Decimal) decimal.Decimal {
	qty := decimal.NewFromInt(int64(NormalizeQuantity(quantity)))
	return qty.Mul(NonNegative(unitPrice)).Sub(NonNegative(discount))
}

// OrderTotal computes laborCost + partsCost - discount without clamping.
func OrderTotal(laborCost, partsCost, discount decimal.Decimal) decimal.Decimal {
	return laborCost.Add(partsCost).Sub(discount)
}

// Sum adds all values. An empty input sums to zero.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Parse reads a decimal amount such as "12.50". The empty string is zero.
func Parse(s string) (decimal.Decimal, error) {
	if s == "" {
		return Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) decimal.Decimal {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Format renders an amount with two decimal places.
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}
