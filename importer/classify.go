package importer

import (
	"bitbucket.org/mmdatafocus/kitchenops_backend/utils"
	"github.com/shopspring/decimal"
)

// IsSuspiciousPrice flags unit prices that cannot be a real delivered cost.
func IsSuspiciousPrice(p decimal.Decimal) bool {
	return p.LessThanOrEqual(decimal.Zero)
}

// IsSuspiciousPriceString applies the predicate to the raw cell value.
// A value that does not parse cannot be verified and is treated as suspicious.
func IsSuspiciousPriceString(s string) bool {
	p, err := utils.ParseFormattedDecimal(s)
	if err != nil {
		return true
	}
	return IsSuspiciousPrice(p)
}
