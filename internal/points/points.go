package points

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ConversionRate is the number of currency units that earn one point:
// a sale of 100 grants 1.00 point, and 1 point redeems for 100.
var ConversionRate = decimal.NewFromInt(100)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrTooManyDecimals = errors.New("amount has too many decimal places")
)

// EarnedPoints converts a sale amount into the points it accrues.
func EarnedPoints(amount decimal.Decimal) (decimal.Decimal, error) {
	if err := validate(amount); err != nil {
		return decimal.Zero, err
	}
	return amount.Div(ConversionRate), nil
}

// RefundPointsRemoved returns the points a refunded amount originally
// earned. Refunding the exact sale amount removes exactly the points
// that sale granted.
func RefundPointsRemoved(amount decimal.Decimal) (decimal.Decimal, error) {
	return EarnedPoints(amount)
}

// RedemptionValue converts points back into currency value.
func RedemptionValue(pts decimal.Decimal) (decimal.Decimal, error) {
	if err := validate(pts); err != nil {
		return decimal.Zero, err
	}
	return pts.Mul(ConversionRate), nil
}

// ParseAmount parses a positive currency or points amount with at most
// two decimal places.
func ParseAmount(raw string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if value.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrInvalidAmount
	}
	if value.Exponent() < -2 {
		return decimal.Zero, ErrTooManyDecimals
	}
	return value, nil
}

// Format renders a points or currency value with two decimal places,
// matching the dashboard display.
func Format(value decimal.Decimal) string {
	return value.StringFixed(2)
}

func validate(value decimal.Decimal) error {
	if value.IsNegative() {
		return ErrInvalidAmount
	}
	if value.Exponent() < -2 {
		return ErrTooManyDecimals
	}
	return nil
}
