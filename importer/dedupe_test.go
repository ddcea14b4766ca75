package importer

import (
	"reflect"
	"testing"
)

func TestDeduplicateRows_FirstOccurrenceWins(t *testing.T) {
	rows := []RawImportRow{
		{ItemCode: "A1", UnitPrice: "10", SourceRow: 2},
		{ItemCode: "B2", UnitPrice: "20", SourceRow: 3},
		{ItemCode: "A1", UnitPrice: "99", SourceRow: 4},
		{ItemCode: "C3", UnitPrice: "30", SourceRow: 5},
		{ItemCode: "B2", UnitPrice: "21", SourceRow: 6},
	}

	out := DeduplicateRows(rows)
	if len(out) != 3 {
		t.Fatalf("expected 3 unique rows, got %d", len(out))
	}
	if out[0].ItemCode != "A1" || out[0].UnitPrice != "10" {
		t.Fatalf("first occurrence not preserved: %+v", out[0])
	}
	if out[1].ItemCode != "B2" || out[2].ItemCode != "C3" {
		t.Fatalf("input order not preserved: %+v", out)
	}
}

func TestDeduplicateRows_Idempotent(t *testing.T) {
	rows := []RawImportRow{
		{ItemCode: "A1", UnitPrice: "10"},
		{ItemCode: "A1", UnitPrice: "11"},
		{ItemCode: "B2", UnitPrice: "20"},
	}
	once := DeduplicateRows(rows)
	twice := DeduplicateRows(once)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("dedup is not idempotent: %+v vs %+v", once, twice)
	}
}

func TestDeduplicateRows_Empty(t *testing.T) {
	out := DeduplicateRows(nil)
	if len(out) != 0 {
		t.Fatalf("expected empty output, got %+v", out)
	}
}
