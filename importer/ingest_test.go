package importer

import (
	"strings"
	"testing"
)

func TestSuggestMapping_VendorHeaderVariants(t *testing.T) {
	cases := []struct {
		name    string
		headers []string
		want    ColumnMapping
	}{
		{
			name:    "canonical headers",
			headers: []string{"Item Code", "Product Name", "Unit Price", "Unit", "Qty"},
			want:    ColumnMapping{ItemCode: 0, ProductName: 1, UnitPrice: 2, UnitOfMeasure: 3, Quantity: 4},
		},
		{
			name:    "sku and description",
			headers: []string{"SKU", "Description", "Case Price", "Pack Size", "Cases"},
			want:    ColumnMapping{ItemCode: 0, ProductName: 1, UnitPrice: 2, UnitOfMeasure: 3, Quantity: 4},
		},
		{
			name:    "shuffled columns",
			headers: []string{"Qty", "Unit Cost", "Item No", "Name"},
			want:    ColumnMapping{ItemCode: 2, ProductName: 3, UnitPrice: 1, UnitOfMeasure: -1, Quantity: 0},
		},
		{
			name:    "nothing recognizable",
			headers: []string{"A", "B"},
			want:    ColumnMapping{ItemCode: -1, ProductName: -1, UnitPrice: -1, UnitOfMeasure: -1, Quantity: -1},
		},
	}
	for _, tc := range cases {
		got := SuggestMapping(tc.headers)
		if got != tc.want {
			t.Fatalf("%s: SuggestMapping(%v) = %+v, want %+v", tc.name, tc.headers, got, tc.want)
		}
	}
}

func TestSuggestMapping_ClaimsEachColumnOnce(t *testing.T) {
	// "Unit Price" must not be stolen by the unit-of-measure aliases.
	m := SuggestMapping([]string{"Item Code", "Product Name", "Unit Price"})
	if m.UnitPrice != 2 {
		t.Fatalf("expected unit price at column 2, got %d", m.UnitPrice)
	}
	if m.UnitOfMeasure != -1 {
		t.Fatalf("expected unit of measure unmapped, got %d", m.UnitOfMeasure)
	}
}

func TestColumnMapping_Validate(t *testing.T) {
	valid := ColumnMapping{ItemCode: 0, ProductName: 1, UnitPrice: 2, UnitOfMeasure: -1, Quantity: -1}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid mapping, got %v", err)
	}
	missing := ColumnMapping{ItemCode: 0, ProductName: 1, UnitPrice: -1, UnitOfMeasure: -1, Quantity: -1}
	if err := missing.Validate(); err == nil {
		t.Fatalf("expected error for unmapped unit price")
	}
}

func TestExtractRows(t *testing.T) {
	rows := [][]string{
		{"Item Code", "Product Name", "Unit Price", "Unit", "Qty"},
		{"A1", "Tomatoes", "12.50", "case", "3"},
		{"1001.0", "Flour", "45", "bag", "2"},
		{"", "no code row", "5", "", "1"},
		{"B2", "Short row"},
	}
	m := ColumnMapping{ItemCode: 0, ProductName: 1, UnitPrice: 2, UnitOfMeasure: 3, Quantity: 4}

	out, err := ExtractRows(rows, m)
	if err != nil {
		t.Fatalf("ExtractRows error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 rows (empty-code row dropped), got %d", len(out))
	}
	if out[0].ItemCode != "A1" || out[0].UnitPrice != "12.50" || out[0].SourceRow != 2 {
		t.Fatalf("unexpected first row: %+v", out[0])
	}
	// spreadsheet-numeric code coerced back to text
	if out[1].ItemCode != "1001" {
		t.Fatalf("expected numeric code normalized to 1001, got %q", out[1].ItemCode)
	}
	// short rows yield empty cells, not a panic
	if out[2].ItemCode != "B2" || out[2].UnitPrice != "" {
		t.Fatalf("unexpected short row: %+v", out[2])
	}
}

func TestExtractRows_RejectsInvalidMapping(t *testing.T) {
	_, err := ExtractRows([][]string{{"h"}}, ColumnMapping{ItemCode: -1, ProductName: 0, UnitPrice: 0})
	if err == nil {
		t.Fatalf("expected mapping validation error")
	}
}

func TestParseUpload_Csv(t *testing.T) {
	csvData := "Item Code,Product Name,Unit Price\nA1,Tomatoes,12.50\nB2,Flour,45\n"
	parsed, err := ParseUpload("invoice-4412.csv", strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("ParseUpload error: %v", err)
	}
	if len(parsed.Sheets) != 1 {
		t.Fatalf("expected 1 sheet for csv, got %d", len(parsed.Sheets))
	}
	if parsed.Sheets[0].Name != "invoice-4412" {
		t.Fatalf("expected sheet named after the file, got %q", parsed.Sheets[0].Name)
	}
	if len(parsed.Sheets[0].Rows) != 3 {
		t.Fatalf("expected 3 rows incl. header, got %d", len(parsed.Sheets[0].Rows))
	}
}

func TestParseUpload_CsvWithBom(t *testing.T) {
	csvData := "\xEF\xBB\xBFItem Code,Product Name,Unit Price\nA1,Tomatoes,12.50\n"
	parsed, err := ParseUpload("invoice.csv", strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("ParseUpload error: %v", err)
	}
	if parsed.Sheets[0].Rows[0][0] != "Item Code" {
		t.Fatalf("BOM not stripped: %q", parsed.Sheets[0].Rows[0][0])
	}
}

func TestParseUpload_RejectsUnknownExtension(t *testing.T) {
	if _, err := ParseUpload("invoice.pdf", strings.NewReader("data")); err == nil {
		t.Fatalf("expected error for unsupported file type")
	}
}

func TestParseUpload_RejectsMalformedXlsx(t *testing.T) {
	if _, err := ParseUpload("invoice.xlsx", strings.NewReader("not a zip archive")); err == nil {
		t.Fatalf("expected error for malformed xlsx")
	}
}
