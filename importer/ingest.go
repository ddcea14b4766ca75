package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Sheet is one tab of an uploaded workbook (CSV uploads yield a single sheet).
type Sheet struct {
	Name string     `json:"name"`
	Rows [][]string `json:"rows"`
}

type ParsedFile struct {
	Filename string  `json:"filename"`
	Sheets   []Sheet `json:"sheets"`
}

// ColumnMapping maps logical invoice fields to 0-based column indexes.
// -1 means unmapped. ItemCode, ProductName and UnitPrice are required.
type ColumnMapping struct {
	ItemCode      int `json:"item_code"`
	ProductName   int `json:"product_name"`
	UnitPrice     int `json:"unit_price"`
	UnitOfMeasure int `json:"unit_of_measure"`
	Quantity      int `json:"quantity"`
}

func (m ColumnMapping) Validate() error {
	if m.ItemCode < 0 {
		return errors.New("item code column is not mapped")
	}
	if m.ProductName < 0 {
		return errors.New("product name column is not mapped")
	}
	if m.UnitPrice < 0 {
		return errors.New("unit price column is not mapped")
	}
	return nil
}

// ParseUpload reads an uploaded .xlsx or .csv file into raw sheet rows.
// Malformed input is an input error: nothing is mutated, the upload is rejected.
func ParseUpload(filename string, r io.Reader) (*ParsedFile, error) {
	if r == nil {
		return nil, errors.New("nil file provided")
	}
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".xlsx"):
		return parseXlsx(filename, r)
	case strings.HasSuffix(lower, ".csv"):
		return parseCsv(filename, r)
	default:
		return nil, fmt.Errorf("invalid file type: only .xlsx and .csv files are allowed")
	}
}

func parseXlsx(filename string, r io.Reader) (*ParsedFile, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %v", err)
	}
	defer f.Close()

	parsed := &ParsedFile{Filename: filename}
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("unable to read sheet %q: %v", name, err)
		}
		parsed.Sheets = append(parsed.Sheets, Sheet{Name: name, Rows: rows})
	}
	if len(parsed.Sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	return parsed, nil
}

func parseCsv(filename string, r io.Reader) (*ParsedFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	// Tolerate a UTF-8 BOM from spreadsheet exports.
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV file: %v", err)
	}
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	return &ParsedFile{
		Filename: filename,
		Sheets:   []Sheet{{Name: base, Rows: rows}},
	}, nil
}

// Field aliases for header auto-suggestion. Matching is a case-insensitive
// substring test, mirroring how reviewers label vendor spreadsheets.
var mappingAliases = []struct {
	assign  func(*ColumnMapping, int)
	aliases []string
}{
	{func(m *ColumnMapping, i int) { m.ItemCode = i },
		[]string{"item code", "item_code", "itemcode", "item #", "item no", "product code", "vendor code", "sku", "code"}},
	{func(m *ColumnMapping, i int) { m.ProductName = i },
		[]string{"product name", "item name", "description", "product", "name"}},
	{func(m *ColumnMapping, i int) { m.UnitPrice = i },
		[]string{"unit price", "unit cost", "case price", "price", "cost"}},
	{func(m *ColumnMapping, i int) { m.UnitOfMeasure = i },
		[]string{"unit of measure", "uom", "pack size", "unit"}},
	{func(m *ColumnMapping, i int) { m.Quantity = i },
		[]string{"quantity", "qty", "cases", "ordered"}},
}

// SuggestMapping proposes a column mapping from the header row.
// Each column is claimed at most once; fields are resolved in priority order
// so "unit price" is not stolen by the unit-of-measure aliases.
func SuggestMapping(headers []string) ColumnMapping {
	m := ColumnMapping{ItemCode: -1, ProductName: -1, UnitPrice: -1, UnitOfMeasure: -1, Quantity: -1}
	claimed := make(map[int]bool, len(headers))

	for _, field := range mappingAliases {
		found := -1
	scan:
		for _, alias := range field.aliases {
			for i, h := range headers {
				if claimed[i] {
					continue
				}
				if strings.Contains(strings.ToLower(strings.TrimSpace(h)), alias) {
					found = i
					break scan
				}
			}
		}
		if found >= 0 {
			claimed[found] = true
			field.assign(&m, found)
		}
	}
	return m
}

var numericCodePattern = regexp.MustCompile(`^(\d+)\.0+$`)

// normalizeItemCode coerces spreadsheet-numeric codes ("1001.0") back to text.
func normalizeItemCode(code string) string {
	code = strings.TrimSpace(code)
	if m := numericCodePattern.FindStringSubmatch(code); m != nil {
		return m[1]
	}
	return code
}

// ExtractRows applies a column mapping to raw sheet rows (header row first).
// Rows with an empty item code cannot be matched or committed and are dropped.
func ExtractRows(rows [][]string, m ColumnMapping) ([]RawImportRow, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("file has no rows")
	}

	cell := func(row []string, idx int) string {
		if idx < 0 || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	out := make([]RawImportRow, 0, len(rows)-1)
	for i, row := range rows[1:] {
		code := normalizeItemCode(cell(row, m.ItemCode))
		if code == "" {
			continue
		}
		out = append(out, RawImportRow{
			ItemCode:      code,
			ProductName:   cell(row, m.ProductName),
			UnitPrice:     cell(row, m.UnitPrice),
			UnitOfMeasure: cell(row, m.UnitOfMeasure),
			Quantity:      cell(row, m.Quantity),
			SourceRow:     i + 2,
		})
	}
	return out, nil
}
