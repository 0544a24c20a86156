package payments

import (
	"github.com/shopspring/decimal"
)

// ToMinorUnits converts a rupee amount to paisa
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromMinorUnits converts paisa back to rupees
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

func validateAmount(amount decimal.Decimal) error {
	switch {
	case !amount.IsPositive():
		return validationErr("amount must be greater than 0")
	case amount.GreaterThan(MaxOrderAmount):
		return validationErr("amount must not exceed %s", MaxOrderAmount.String())
	case !amount.Equal(amount.Round(2)):
		return validationErr("amount must have at most 2 decimal places")
	}
	return nil
}
