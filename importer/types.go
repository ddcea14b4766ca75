package importer

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawImportRow is one line from the uploaded vendor invoice file.
// Rows are immutable after extraction; duplicate item codes survive in the
// source but are suppressed from the working set by DeduplicateRows.
type RawImportRow struct {
	ItemCode      string `json:"item_code"`
	ProductName   string `json:"product_name"`
	UnitPrice     string `json:"unit_price"`
	UnitOfMeasure string `json:"unit_of_measure"`
	Quantity      string `json:"quantity"`
	// SourceRow is the 1-based physical row in the uploaded sheet.
	SourceRow int `json:"source_row"`
}

// CatalogItem is the reviewer-facing snapshot of a persisted catalog record.
// The snapshot is fetched once per review session; refreshing it re-runs
// detection (see ReviewSession.RefreshSnapshot).
type CatalogItem struct {
	ID            int             `json:"id"`
	ItemCode      string          `json:"item_code"`
	ProductName   string          `json:"product_name"`
	UnitOfMeasure string          `json:"unit_of_measure"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
}

// PriceChange is derived per de-duplicated row that matches a catalog item.
type PriceChange struct {
	ItemCode      string          `json:"item_code"`
	ProductName   string          `json:"product_name"`
	OldPrice      decimal.Decimal `json:"old_price"`
	NewPrice      decimal.Decimal `json:"new_price"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	// PercentValid is false when the old price is zero: the percent delta is
	// not computable and must never surface as Inf/NaN.
	PercentValid bool `json:"percent_valid"`
	Approved     bool `json:"approved"`
	Rejected     bool `json:"rejected"`
}

type DispositionState string

const (
	DispositionUndecided   DispositionState = "undecided"
	DispositionApproved    DispositionState = "approved"
	DispositionRejected    DispositionState = "rejected"
	DispositionExcluded    DispositionState = "excluded"
	DispositionSkipped     DispositionState = "skipped"
	DispositionDiscrepancy DispositionState = "discrepancy"
)

// Terminal reports whether the state permits commit without further input.
func (s DispositionState) Terminal() bool {
	return s != "" && s != DispositionUndecided
}

type DiscrepancyType string

const (
	DiscrepancyShort         DiscrepancyType = "short"
	DiscrepancyDamaged       DiscrepancyType = "damaged"
	DiscrepancyWrongItem     DiscrepancyType = "wrong_item"
	DiscrepancyPriceMismatch DiscrepancyType = "price_mismatch"
)

func (t DiscrepancyType) Valid() bool {
	switch t {
	case DiscrepancyShort, DiscrepancyDamaged, DiscrepancyWrongItem, DiscrepancyPriceMismatch:
		return true
	}
	return false
}

type DiscrepancyInfo struct {
	Type  DiscrepancyType `json:"type"`
	Notes string          `json:"notes"`
}

// Disposition is the review decision applied to one de-duplicated row.
type Disposition struct {
	State       DispositionState `json:"state"`
	Discrepancy *DiscrepancyInfo `json:"discrepancy,omitempty"`
	Notes       string           `json:"notes,omitempty"`
}

// LineItem is one committed invoice line.
type LineItem struct {
	ItemCode      string          `json:"item_code"`
	ProductName   string          `json:"product_name"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	UnitOfMeasure string          `json:"unit_of_measure"`
	Quantity      decimal.Decimal `json:"quantity"`
	IsNewItem     bool            `json:"is_new_item"`
}

// ImportBatch is the commit payload handed to the audit-trail writer.
type ImportBatch struct {
	OrganizationId  string     `json:"organization_id"`
	VendorId        int        `json:"vendor_id"`
	InvoiceNumber   string     `json:"invoice_number"`
	InvoiceDate     time.Time  `json:"invoice_date"`
	SourceFilename  string     `json:"source_filename"`
	SessionId       string     `json:"session_id"`
	CreatedByUserId int        `json:"created_by_user_id"`
	LineItems       []LineItem `json:"line_items"`
}

// ApprovedChange is one approved price mutation, excluding discrepancy rows.
type ApprovedChange struct {
	ItemCode string          `json:"item_code"`
	OldPrice decimal.Decimal `json:"old_price"`
	NewPrice decimal.Decimal `json:"new_price"`
}

// PendingRow is a skipped new-item row staged for later catalog resolution.
type PendingRow struct {
	OrganizationId string `json:"organization_id"`
	VendorId       int    `json:"vendor_id"`
	ItemCode       string `json:"item_code"`
	ProductName    string `json:"product_name"`
	UnitPrice      string `json:"unit_price"`
	UnitOfMeasure  string `json:"unit_of_measure"`
}

// CommitReceipt is the audit-trail writer's acknowledgement.
type CommitReceipt struct {
	BatchId           int `json:"batch_id"`
	PriceChangesCount int `json:"price_changes_count"`
}
