package importer

import (
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/kitchenops_backend/utils"
	"github.com/shopspring/decimal"
)

var (
	ErrSessionCommitted = errors.New("import session is already committed")
	ErrUnknownItemCode  = errors.New("item code is not in the working set")
)

// ReviewSession is the in-progress state of one invoice import: the
// de-duplicated working set, the catalog snapshot it was detected against,
// derived price changes and per-row dispositions. Sessions are serialized
// as JSON into the session store between requests; every mutation happens
// under the store's per-session lock.
type ReviewSession struct {
	ID              string    `json:"id"`
	OrganizationId  string    `json:"organization_id"`
	VendorId        int       `json:"vendor_id"`
	SourceFilename  string    `json:"source_filename"`
	InvoiceDate     time.Time `json:"invoice_date"`
	CreatedByUserId int       `json:"created_by_user_id"`

	SheetName string        `json:"sheet_name"`
	RawRows   [][]string    `json:"raw_rows"` // selected sheet incl. header, kept for remapping
	Mapping   ColumnMapping `json:"mapping"`

	Rows      []RawImportRow `json:"rows"` // de-duplicated working set
	TotalRows int            `json:"total_rows"`

	Snapshot     map[string]CatalogItem `json:"snapshot"`
	Changes      []PriceChange          `json:"changes"`
	Dispositions map[string]Disposition `json:"dispositions"`
	QuickAdded   map[string]bool        `json:"quick_added"`

	Committed        bool `json:"committed"`
	CommittedBatchId int  `json:"committed_batch_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ApplyMapping (re)extracts the working set from the stored sheet using the
// given column mapping. Changing the mapping invalidates every prior decision:
// dispositions reset and detection re-runs against the current snapshot.
func (s *ReviewSession) ApplyMapping(m ColumnMapping) error {
	if s.Committed {
		return ErrSessionCommitted
	}
	raw, err := ExtractRows(s.RawRows, m)
	if err != nil {
		return err
	}
	s.Mapping = m
	s.TotalRows = len(raw)
	s.Rows = DeduplicateRows(raw)
	s.Dispositions = map[string]Disposition{}
	s.runDetection()
	return nil
}

// runDetection recomputes the derived price changes from the authoritative
// working set and snapshot. Quick-added items are excluded: their price
// history starts at creation, there is nothing to compare against.
func (s *ReviewSession) runDetection() {
	snapshot := s.Snapshot
	if len(s.QuickAdded) > 0 {
		snapshot = make(map[string]CatalogItem, len(s.Snapshot))
		for code, item := range s.Snapshot {
			if s.QuickAdded[code] {
				continue
			}
			snapshot[code] = item
		}
	}
	s.Changes = DetectPriceChanges(s.Rows, snapshot)
}

func (s *ReviewSession) rowByCode(code string) (RawImportRow, bool) {
	for _, row := range s.Rows {
		if row.ItemCode == code {
			return row, true
		}
	}
	return RawImportRow{}, false
}

func (s *ReviewSession) changeFor(code string) *PriceChange {
	for i := range s.Changes {
		if s.Changes[i].ItemCode == code {
			return &s.Changes[i]
		}
	}
	return nil
}

// IsMatched reports whether the row has a catalog record (including items
// quick-added during this session).
func (s *ReviewSession) IsMatched(code string) bool {
	_, ok := s.Snapshot[code]
	return ok
}

// IsNewRow reports whether the row has no catalog match.
func (s *ReviewSession) IsNewRow(code string) bool {
	_, inWorkingSet := s.rowByCode(code)
	return inWorkingSet && !s.IsMatched(code)
}

// DispositionFor returns the row's current disposition (undecided by default).
func (s *ReviewSession) DispositionFor(code string) Disposition {
	if d, ok := s.Dispositions[code]; ok {
		return d
	}
	return Disposition{State: DispositionUndecided}
}

func (s *ReviewSession) guardMutable(code string) (RawImportRow, error) {
	if s.Committed {
		return RawImportRow{}, ErrSessionCommitted
	}
	row, ok := s.rowByCode(code)
	if !ok {
		return RawImportRow{}, ErrUnknownItemCode
	}
	return row, nil
}

// Approve accepts a detected price change. Only catalog-matched rows with a
// non-suspicious price can be approved, and only from undecided.
func (s *ReviewSession) Approve(code string) error {
	if _, err := s.guardMutable(code); err != nil {
		return err
	}
	change := s.changeFor(code)
	if change == nil {
		return fmt.Errorf("item %s has no price change to approve", code)
	}
	if IsSuspiciousPrice(change.NewPrice) {
		return fmt.Errorf("item %s has a suspicious unit price; mark a discrepancy instead", code)
	}
	if state := s.DispositionFor(code).State; state != DispositionUndecided {
		return fmt.Errorf("item %s is already %s", code, state)
	}
	s.Dispositions[code] = Disposition{State: DispositionApproved}
	change.Approved = true
	change.Rejected = false
	return nil
}

// Reject declines a detected price change (the catalog keeps its price).
func (s *ReviewSession) Reject(code string) error {
	if _, err := s.guardMutable(code); err != nil {
		return err
	}
	change := s.changeFor(code)
	if change == nil {
		return fmt.Errorf("item %s has no price change to reject", code)
	}
	if state := s.DispositionFor(code).State; state != DispositionUndecided {
		return fmt.Errorf("item %s is already %s", code, state)
	}
	s.Dispositions[code] = Disposition{State: DispositionRejected}
	change.Rejected = true
	change.Approved = false
	return nil
}

// Exclude drops a new-item row from the import entirely.
// Catalog-matched rows are approved/rejected, never excluded.
func (s *ReviewSession) Exclude(code string) error {
	if _, err := s.guardMutable(code); err != nil {
		return err
	}
	if !s.IsNewRow(code) {
		return fmt.Errorf("item %s exists in the catalog and cannot be excluded", code)
	}
	if state := s.DispositionFor(code).State; state != DispositionUndecided {
		return fmt.Errorf("item %s is already %s", code, state)
	}
	s.Dispositions[code] = Disposition{State: DispositionExcluded}
	return nil
}

// Restore returns an excluded row to review.
func (s *ReviewSession) Restore(code string) error {
	if _, err := s.guardMutable(code); err != nil {
		return err
	}
	if s.DispositionFor(code).State != DispositionExcluded {
		return fmt.Errorf("item %s is not excluded", code)
	}
	delete(s.Dispositions, code)
	return nil
}

// Skip defers a new-item row to the pending queue instead of resolving it now.
func (s *ReviewSession) Skip(code string) error {
	if _, err := s.guardMutable(code); err != nil {
		return err
	}
	if !s.IsNewRow(code) {
		return fmt.Errorf("item %s exists in the catalog and cannot be skipped", code)
	}
	if state := s.DispositionFor(code).State; state != DispositionUndecided {
		return fmt.Errorf("item %s is already %s", code, state)
	}
	s.Dispositions[code] = Disposition{State: DispositionSkipped}
	return nil
}

// MarkDiscrepancy flags a delivery/billing anomaly on a catalog-matched row.
// The row's price change, if any, is forced to rejected in the same step:
// there is never an intermediate state with the discrepancy set and the
// change still approved.
func (s *ReviewSession) MarkDiscrepancy(code string, typ DiscrepancyType, notes string) error {
	if _, err := s.guardMutable(code); err != nil {
		return err
	}
	if !typ.Valid() {
		return fmt.Errorf("unknown discrepancy type %q", typ)
	}
	if !s.IsMatched(code) {
		return fmt.Errorf("item %s is not in the catalog; discrepancies apply to existing items", code)
	}
	if s.DispositionFor(code).State == DispositionDiscrepancy {
		return fmt.Errorf("item %s already has a discrepancy", code)
	}
	s.Dispositions[code] = Disposition{
		State:       DispositionDiscrepancy,
		Discrepancy: &DiscrepancyInfo{Type: typ, Notes: notes},
	}
	if change := s.changeFor(code); change != nil {
		change.Rejected = true
		change.Approved = false
	}
	return nil
}

// ClearDiscrepancy removes the flag. The row returns to undecided: the prior
// approve/reject decision is NOT restored, the reviewer must decide again.
func (s *ReviewSession) ClearDiscrepancy(code string) error {
	if _, err := s.guardMutable(code); err != nil {
		return err
	}
	if s.DispositionFor(code).State != DispositionDiscrepancy {
		return fmt.Errorf("item %s has no discrepancy to clear", code)
	}
	delete(s.Dispositions, code)
	if change := s.changeFor(code); change != nil {
		change.Approved = false
		change.Rejected = false
	}
	return nil
}

// BulkMarkShort marks every suspicious catalog-matched row that carries no
// discrepancy yet as a short delivery. Excluded rows are left alone; a prior
// approve/reject is overridden, the mark describes the delivery itself.
// Returns the number of rows marked.
func (s *ReviewSession) BulkMarkShort() (int, error) {
	if s.Committed {
		return 0, ErrSessionCommitted
	}
	marked := 0
	for _, row := range s.Rows {
		change := s.changeFor(row.ItemCode)
		if change == nil || !IsSuspiciousPrice(change.NewPrice) {
			continue
		}
		state := s.DispositionFor(row.ItemCode).State
		if state == DispositionDiscrepancy || state == DispositionExcluded {
			continue
		}
		if err := s.MarkDiscrepancy(row.ItemCode, DiscrepancyShort, ""); err != nil {
			return marked, err
		}
		marked++
	}
	return marked, nil
}

// RegisterQuickAdd records that a new-item row was turned into a catalog item
// during this session. The row leaves the new-item set: it is commit-ready on
// its own, contributes no price change, and loses a prior skipped mark.
func (s *ReviewSession) RegisterQuickAdd(code string, item CatalogItem) error {
	if _, err := s.guardMutable(code); err != nil {
		return err
	}
	if !s.IsNewRow(code) {
		return fmt.Errorf("item %s already exists in the catalog", code)
	}
	if s.Snapshot == nil {
		s.Snapshot = map[string]CatalogItem{}
	}
	if s.QuickAdded == nil {
		s.QuickAdded = map[string]bool{}
	}
	s.Snapshot[code] = item
	s.QuickAdded[code] = true
	if s.DispositionFor(code).State == DispositionSkipped ||
		s.DispositionFor(code).State == DispositionExcluded {
		delete(s.Dispositions, code)
	}

	// Re-detection rebuilds the change list with cleared flags; the other
	// rows' comparisons did not move, so their decisions carry over.
	prior := make(map[string]PriceChange, len(s.Changes))
	for _, c := range s.Changes {
		prior[c.ItemCode] = c
	}
	s.runDetection()
	for i := range s.Changes {
		if prev, had := prior[s.Changes[i].ItemCode]; had && prev.OldPrice.Equal(s.Changes[i].OldPrice) {
			s.Changes[i].Approved = prev.Approved
			s.Changes[i].Rejected = prev.Rejected
		}
	}
	s.enforceDiscrepancyInvariant()
	return nil
}

// RefreshSnapshot replaces the catalog snapshot and re-runs detection.
// Going stale is not an option: a decision made against a superseded old
// price is reset to undecided; decisions whose underlying numbers did not
// move are carried over. Discrepancy flags survive a refresh (they describe
// the delivery, not the price) and keep their changes rejected.
func (s *ReviewSession) RefreshSnapshot(items []CatalogItem) error {
	if s.Committed {
		return ErrSessionCommitted
	}

	prior := make(map[string]PriceChange, len(s.Changes))
	for _, c := range s.Changes {
		prior[c.ItemCode] = c
	}

	s.Snapshot = make(map[string]CatalogItem, len(items))
	for _, item := range items {
		s.Snapshot[item.ItemCode] = item
	}
	s.runDetection()

	for i := range s.Changes {
		code := s.Changes[i].ItemCode
		prev, had := prior[code]
		if had && prev.OldPrice.Equal(s.Changes[i].OldPrice) {
			s.Changes[i].Approved = prev.Approved
			s.Changes[i].Rejected = prev.Rejected
			continue
		}
		// Old price moved (or the match is new): any approve/reject made
		// against the stale number is void.
		if state := s.DispositionFor(code).State; state == DispositionApproved || state == DispositionRejected {
			delete(s.Dispositions, code)
		}
	}

	// Dispositions that no longer fit the row's matched/new classification.
	for code, d := range s.Dispositions {
		matched := s.IsMatched(code)
		switch d.State {
		case DispositionApproved, DispositionRejected, DispositionDiscrepancy:
			if !matched {
				delete(s.Dispositions, code)
			}
		case DispositionExcluded, DispositionSkipped:
			if matched {
				delete(s.Dispositions, code)
			}
		}
	}

	s.enforceDiscrepancyInvariant()
	return nil
}

// enforceDiscrepancyInvariant re-asserts that no discrepancy row carries an
// approved price change. Enforced on every read path, not only on the
// transition, so a caller poking Approved by hand cannot leak a change out.
func (s *ReviewSession) enforceDiscrepancyInvariant() {
	for i := range s.Changes {
		if s.DispositionFor(s.Changes[i].ItemCode).State == DispositionDiscrepancy {
			s.Changes[i].Approved = false
			s.Changes[i].Rejected = true
		}
	}
}

// ApprovedChanges returns the price mutations cleared for commit: approved
// changes whose rows carry no discrepancy.
func (s *ReviewSession) ApprovedChanges() []ApprovedChange {
	s.enforceDiscrepancyInvariant()
	out := make([]ApprovedChange, 0, len(s.Changes))
	for _, c := range s.Changes {
		if !c.Approved || c.Rejected {
			continue
		}
		out = append(out, ApprovedChange{
			ItemCode: c.ItemCode,
			OldPrice: c.OldPrice,
			NewPrice: c.NewPrice,
		})
	}
	return out
}

// LineItems returns the ordered invoice lines, excluding excluded rows.
// Discrepancy and skipped rows still appear: they were delivered (or billed)
// and belong on the invoice even when their price change is suppressed.
func (s *ReviewSession) LineItems() []LineItem {
	out := make([]LineItem, 0, len(s.Rows))
	for _, row := range s.Rows {
		if s.DispositionFor(row.ItemCode).State == DispositionExcluded {
			continue
		}
		unitPrice, err := utils.ParseFormattedDecimal(row.UnitPrice)
		if err != nil {
			unitPrice = decimal.Zero
		}
		qty, err := utils.ParseFormattedDecimal(row.Quantity)
		if err != nil {
			qty = decimal.Zero
		}
		out = append(out, LineItem{
			ItemCode:      row.ItemCode,
			ProductName:   row.ProductName,
			UnitPrice:     unitPrice,
			UnitOfMeasure: row.UnitOfMeasure,
			Quantity:      qty,
			IsNewItem:     !s.IsMatched(row.ItemCode),
		})
	}
	return out
}

// SkippedRows returns the new-item rows deferred to the pending queue.
func (s *ReviewSession) SkippedRows() []PendingRow {
	out := make([]PendingRow, 0)
	for _, row := range s.Rows {
		if s.DispositionFor(row.ItemCode).State != DispositionSkipped {
			continue
		}
		out = append(out, PendingRow{
			OrganizationId: s.OrganizationId,
			VendorId:       s.VendorId,
			ItemCode:       row.ItemCode,
			ProductName:    row.ProductName,
			UnitPrice:      row.UnitPrice,
			UnitOfMeasure:  row.UnitOfMeasure,
		})
	}
	return out
}

func (s *ReviewSession) rowCommitReady(code string) bool {
	if s.QuickAdded[code] {
		return true
	}
	state := s.DispositionFor(code).State
	if s.IsMatched(code) {
		return state.Terminal()
	}
	return state == DispositionExcluded || state == DispositionSkipped
}

// UnresolvedCodes lists the rows still blocking commit, in working-set order.
func (s *ReviewSession) UnresolvedCodes() []string {
	var out []string
	for _, row := range s.Rows {
		if !s.rowCommitReady(row.ItemCode) {
			out = append(out, row.ItemCode)
		}
	}
	return out
}

// CommitReady reports whether every de-duplicated row reached a terminal
// disposition.
func (s *ReviewSession) CommitReady() bool {
	return len(s.UnresolvedCodes()) == 0
}
