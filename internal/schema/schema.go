package schema

import (
	"github.com/shopspring/decimal"
)

// Price is a scaled integer in cents. A Price of 255 is $2.55.
type Price int64

// Quantity is a contract count. Signed so positions can go short.
type Quantity int64

// ContractMultiplier is the cash value of one point for index options.
const ContractMultiplier = 100

// PriceScale is the fixed decimal scale of Price.
const PriceScale = 2

// Decimal converts a price to its decimal point value.
func (p Price) Decimal() decimal.Decimal {
	return decimal.New(int64(p), -PriceScale)
}

// Float64 converts a price to a float for display only.
func (p Price) Float64() float64 {
	return float64(p) / 100
}

// PriceFromDecimal converts a decimal point value to a scaled price.
// The value is rounded half-up to the price scale.
func PriceFromDecimal(d decimal.Decimal) Price {
	return Price(d.Shift(PriceScale).Round(0).IntPart())
}

// PriceFromFloat converts a float point value to a scaled price.
func PriceFromFloat(v float64) Price {
	return PriceFromDecimal(decimal.NewFromFloat(v))
}
