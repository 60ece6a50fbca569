package reservations

import (
	"github.com/angelmondragon/bedbroker-backend/internal/inventory"
	"github.com/shopspring/decimal"
)

const (
	billingPeriodDays = 30
	currencyPlaces    = 2
)

var depositRate = decimal.RequireFromString("0.20")

// durationPrice prices a stay of days across the beds, pro rata on the
// monthly bed price.
func durationPrice(beds []inventory.LockedBed, days int) decimal.Decimal {
	return periodPrice(beds).
		Mul(decimal.NewFromInt(int64(days))).
		Div(decimal.NewFromInt(billingPeriodDays)).
		Round(currencyPlaces)
}

// periodPrice is one billing period for every bed.
func periodPrice(beds []inventory.LockedBed) decimal.Decimal {
	total := decimal.Zero
	for _, bed := range beds {
		total = total.Add(bed.PricePerBed)
	}
	return total.Round(currencyPlaces)
}

// splitDeposit returns the deposit due at confirmation and the remainder.
func splitDeposit(total decimal.Decimal) (deposit, remaining decimal.Decimal) {
	deposit = total.Mul(depositRate).Round(currencyPlaces)
	return deposit, total.Sub(deposit)
}
