package importer

import (
	"testing"

	"github.com/shopspring/decimal"
)

func snapshotOf(items ...CatalogItem) map[string]CatalogItem {
	m := make(map[string]CatalogItem, len(items))
	for _, item := range items {
		m[item.ItemCode] = item
	}
	return m
}

func TestDetectPriceChanges_PercentDelta(t *testing.T) {
	snapshot := snapshotOf(
		CatalogItem{ItemCode: "A1", ProductName: "Tomatoes", CurrentPrice: decimal.NewFromInt(10)},
	)
	rows := []RawImportRow{{ItemCode: "A1", UnitPrice: "12"}}

	changes := DetectPriceChanges(rows, snapshot)
	if len(changes) != 1 {
		t.Fatalf("expected 1 change, got %d", len(changes))
	}
	c := changes[0]
	if !c.PercentValid {
		t.Fatalf("expected percent valid for non-zero old price")
	}
	if c.ChangePercent.String() != "20" {
		t.Fatalf("10 -> 12 expected 20%%, got %s", c.ChangePercent.String())
	}
	if c.OldPrice.String() != "10" || c.NewPrice.String() != "12" {
		t.Fatalf("unexpected prices: %+v", c)
	}
}

func TestDetectPriceChanges_UnmatchedRowsAreNew(t *testing.T) {
	snapshot := snapshotOf(CatalogItem{ItemCode: "A1", CurrentPrice: decimal.NewFromInt(10)})
	rows := []RawImportRow{
		{ItemCode: "A1", UnitPrice: "10.50"},
		{ItemCode: "NEW1", UnitPrice: "5"},
	}

	changes := DetectPriceChanges(rows, snapshot)
	if len(changes) != 1 {
		t.Fatalf("expected unmatched row to contribute no change, got %d changes", len(changes))
	}
	if changes[0].ItemCode != "A1" {
		t.Fatalf("unexpected change: %+v", changes[0])
	}
}

func TestDetectPriceChanges_ZeroOldPrice(t *testing.T) {
	snapshot := snapshotOf(CatalogItem{ItemCode: "Z0", CurrentPrice: decimal.Zero})
	rows := []RawImportRow{{ItemCode: "Z0", UnitPrice: "8"}}

	// The percent is not computable; the result must be deterministic and
	// must never surface Inf/NaN.
	for run := 0; run < 10; run++ {
		changes := DetectPriceChanges(rows, snapshot)
		if len(changes) != 1 {
			t.Fatalf("run=%d expected 1 change, got %d", run, len(changes))
		}
		c := changes[0]
		if c.PercentValid {
			t.Fatalf("run=%d expected PercentValid=false for zero old price", run)
		}
		if !c.ChangePercent.IsZero() {
			t.Fatalf("run=%d expected zero percent placeholder, got %s", run, c.ChangePercent.String())
		}
	}
}

func TestDetectPriceChanges_UnparseablePriceDegradesToZero(t *testing.T) {
	snapshot := snapshotOf(CatalogItem{ItemCode: "A1", CurrentPrice: decimal.NewFromInt(10)})
	rows := []RawImportRow{{ItemCode: "A1", UnitPrice: "n/a"}}

	changes := DetectPriceChanges(rows, snapshot)
	if len(changes) != 1 {
		t.Fatalf("expected row to stay matched, got %d changes", len(changes))
	}
	if !changes[0].NewPrice.IsZero() {
		t.Fatalf("expected new price to degrade to zero, got %s", changes[0].NewPrice.String())
	}
	if !IsSuspiciousPrice(changes[0].NewPrice) {
		t.Fatalf("degraded price should be suspicious")
	}
}

func TestDetectPriceChanges_FormattedPrices(t *testing.T) {
	snapshot := snapshotOf(CatalogItem{ItemCode: "A1", CurrentPrice: decimal.NewFromInt(1000)})
	rows := []RawImportRow{{ItemCode: "A1", UnitPrice: "$1,250.00"}}

	changes := DetectPriceChanges(rows, snapshot)
	if len(changes) != 1 {
		t.Fatalf("expected 1 change, got %d", len(changes))
	}
	if changes[0].NewPrice.String() != "1250" {
		t.Fatalf("expected formatted price parsed to 1250, got %s", changes[0].NewPrice.String())
	}
	if changes[0].ChangePercent.String() != "25" {
		t.Fatalf("1000 -> 1250 expected 25%%, got %s", changes[0].ChangePercent.String())
	}
}

func TestIsSuspiciousPrice(t *testing.T) {
	cases := []struct {
		price string
		want  bool
	}{
		{"0", true},
		{"-1.50", true},
		{"0.01", false},
		{"12.50", false},
	}
	for _, tc := range cases {
		p, err := decimal.NewFromString(tc.price)
		if err != nil {
			t.Fatalf("bad test price %q: %v", tc.price, err)
		}
		if got := IsSuspiciousPrice(p); got != tc.want {
			t.Fatalf("IsSuspiciousPrice(%s) = %v, want %v", tc.price, got, tc.want)
		}
	}
}

func TestIsSuspiciousPriceString(t *testing.T) {
	if !IsSuspiciousPriceString("not a number") {
		t.Fatalf("unparseable price must be suspicious")
	}
	if !IsSuspiciousPriceString("") {
		t.Fatalf("empty price must be suspicious")
	}
	if IsSuspiciousPriceString("MMK 1,234.50") {
		t.Fatalf("formatted positive price must not be suspicious")
	}
}
