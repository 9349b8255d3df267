package enginev1

import (
	"fmt"
	"strings"
)

// All engine arithmetic stays on integer grids. A quote amount in micro units
// is exactly price * quantity because PriceScale * QuantityScale == QuoteScale.

// QuoteMicros returns the quote amount of a fill in micro units.
func QuoteMicros(price int32, quantity uint64) int64 {
	return int64(price) * int64(quantity)
}

// QuantityByBudget returns the largest quantity affordable at price with the
// given budget in micro units, floored to the quantity grid.
func QuantityByBudget(budgetMicros int64, price int32) uint64 {
	if price <= 0 || budgetMicros <= 0 {
		return 0
	}
	return uint64(budgetMicros / int64(price))
}

// FormatPrice renders a grid price as a trimmed decimal string, e.g. 6000 -> "0.6".
func FormatPrice(price int32) string {
	return formatScaled(int64(price), 4)
}

// FormatQuantity renders a grid quantity as a trimmed decimal string, e.g. 10000 -> "100".
func FormatQuantity(quantity uint64) string {
	return formatScaled(int64(quantity), 2)
}

// FormatQuote renders a micro quote amount as a trimmed decimal string, e.g. 60000000 -> "60".
func FormatQuote(micros int64) string {
	return formatScaled(micros, 6)
}

func formatScaled(value int64, decimals int) string {
	div := int64(1)
	for i := 0; i < decimals; i++ {
		div *= 10
	}

	whole := value / div
	frac := value % div
	if frac == 0 {
		return fmt.Sprintf("%d", whole)
	}

	s := fmt.Sprintf("%d.%0*d", whole, decimals, frac)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
