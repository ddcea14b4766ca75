package importer

import (
	"bitbucket.org/mmdatafocus/kitchenops_backend/utils"
	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// DetectPriceChanges joins de-duplicated rows against the catalog snapshot by
// item code and computes the percent delta for each match. Unmatched rows are
// "new" and contribute nothing. The output preserves input order.
//
// When the catalog price is zero the delta is not computable: the entry is
// emitted with PercentValid=false and a zero percent, deterministically on
// every invocation. A row whose unit price fails to parse is still matched;
// its new price degrades to zero and the suspicious-price predicate applies.
func DetectPriceChanges(rows []RawImportRow, snapshot map[string]CatalogItem) []PriceChange {
	changes := make([]PriceChange, 0, len(rows))
	for _, row := range rows {
		item, ok := snapshot[row.ItemCode]
		if !ok {
			continue
		}

		newPrice, err := utils.ParseFormattedDecimal(row.UnitPrice)
		if err != nil {
			newPrice = decimal.Zero
		}

		change := PriceChange{
			ItemCode:    row.ItemCode,
			ProductName: item.ProductName,
			OldPrice:    item.CurrentPrice,
			NewPrice:    newPrice,
		}
		if !item.CurrentPrice.IsZero() {
			change.ChangePercent = newPrice.Sub(item.CurrentPrice).
				Div(item.CurrentPrice).
				Mul(oneHundred)
			change.PercentValid = true
		}
		changes = append(changes, change)
	}
	return changes
}
