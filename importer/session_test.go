package importer

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// newReviewFixture builds a session over a three-row invoice:
// A1 is catalog-matched with a 10 -> 12 change, X100 is catalog-matched with a
// suspicious zero price, NEW1 has no catalog record.
func newReviewFixture(t *testing.T) *ReviewSession {
	t.Helper()
	s := &ReviewSession{
		ID:              "sess-1",
		OrganizationId:  "org-1",
		VendorId:        7,
		SourceFilename:  "invoice-4412.csv",
		InvoiceDate:     time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		CreatedByUserId: 3,
		RawRows: [][]string{
			{"Item Code", "Product Name", "Unit Price", "Unit", "Qty"},
			{"A1", "Tomatoes", "12", "case", "3"},
			{"X100", "Mystery Box", "0", "each", "1"},
			{"NEW1", "New Sauce", "7.25", "jar", "2"},
		},
		Snapshot: snapshotOf(
			CatalogItem{ID: 1, ItemCode: "A1", ProductName: "Tomatoes", CurrentPrice: decimal.NewFromInt(10)},
			CatalogItem{ID: 2, ItemCode: "X100", ProductName: "Mystery Box", CurrentPrice: decimal.NewFromInt(4)},
		),
		Dispositions: map[string]Disposition{},
		QuickAdded:   map[string]bool{},
	}
	if err := s.ApplyMapping(SuggestMapping(s.RawRows[0])); err != nil {
		t.Fatalf("ApplyMapping error: %v", err)
	}
	return s
}

func TestSession_ApproveMatchedRow(t *testing.T) {
	s := newReviewFixture(t)

	if err := s.Approve("A1"); err != nil {
		t.Fatalf("Approve(A1) error: %v", err)
	}
	approved := s.ApprovedChanges()
	if len(approved) != 1 || approved[0].ItemCode != "A1" {
		t.Fatalf("expected A1 approved, got %+v", approved)
	}
	if approved[0].NewPrice.String() != "12" {
		t.Fatalf("unexpected approved price: %+v", approved[0])
	}

	// double approval is a no-op error
	if err := s.Approve("A1"); err == nil {
		t.Fatalf("expected error approving an already-approved row")
	}
}

func TestSession_ApproveRejectsSuspiciousAndNewRows(t *testing.T) {
	s := newReviewFixture(t)

	if err := s.Approve("X100"); err == nil {
		t.Fatalf("expected error approving a suspicious price")
	}
	if err := s.Approve("NEW1"); err == nil {
		t.Fatalf("expected error approving a row with no price change")
	}
	if err := s.Approve("GHOST"); !errors.Is(err, ErrUnknownItemCode) {
		t.Fatalf("expected ErrUnknownItemCode, got %v", err)
	}
}

func TestSession_DiscrepancyForcesRejection(t *testing.T) {
	s := newReviewFixture(t)

	if err := s.Approve("A1"); err != nil {
		t.Fatalf("Approve error: %v", err)
	}
	if err := s.MarkDiscrepancy("A1", DiscrepancyDamaged, "crushed cases"); err != nil {
		t.Fatalf("MarkDiscrepancy error: %v", err)
	}

	// the price change is rejected in the same step, never left approved
	change := s.changeFor("A1")
	if change.Approved || !change.Rejected {
		t.Fatalf("discrepancy must force rejection, got %+v", change)
	}
	if len(s.ApprovedChanges()) != 0 {
		t.Fatalf("discrepancy row leaked into approved changes")
	}

	d := s.DispositionFor("A1")
	if d.State != DispositionDiscrepancy || d.Discrepancy == nil || d.Discrepancy.Type != DiscrepancyDamaged {
		t.Fatalf("unexpected disposition: %+v", d)
	}
}

func TestSession_ApprovedChangesReEnforcedOnRead(t *testing.T) {
	s := newReviewFixture(t)

	if err := s.MarkDiscrepancy("A1", DiscrepancyWrongItem, ""); err != nil {
		t.Fatalf("MarkDiscrepancy error: %v", err)
	}
	// poke the flag by hand; the read path must re-assert the invariant
	s.changeFor("A1").Approved = true
	s.changeFor("A1").Rejected = false

	if len(s.ApprovedChanges()) != 0 {
		t.Fatalf("invariant not re-enforced on read")
	}
	if c := s.changeFor("A1"); c.Approved || !c.Rejected {
		t.Fatalf("change flags not repaired: %+v", c)
	}
}

func TestSession_ClearDiscrepancyReturnsToUndecided(t *testing.T) {
	s := newReviewFixture(t)

	if err := s.Approve("A1"); err != nil {
		t.Fatalf("Approve error: %v", err)
	}
	if err := s.MarkDiscrepancy("A1", DiscrepancyShort, ""); err != nil {
		t.Fatalf("MarkDiscrepancy error: %v", err)
	}
	if err := s.ClearDiscrepancy("A1"); err != nil {
		t.Fatalf("ClearDiscrepancy error: %v", err)
	}

	// prior approval is NOT restored
	if got := s.DispositionFor("A1").State; got != DispositionUndecided {
		t.Fatalf("expected undecided after clear, got %s", got)
	}
	if c := s.changeFor("A1"); c.Approved || c.Rejected {
		t.Fatalf("change flags should reset, got %+v", c)
	}
	if err := s.ClearDiscrepancy("A1"); err == nil {
		t.Fatalf("expected error clearing a row with no discrepancy")
	}
}

func TestSession_SuspiciousRowRoundTrip(t *testing.T) {
	s := newReviewFixture(t)

	// X100 cannot be approved while suspicious; bulk-short picks it up
	marked, err := s.BulkMarkShort()
	if err != nil {
		t.Fatalf("BulkMarkShort error: %v", err)
	}
	if marked != 1 {
		t.Fatalf("expected exactly the X100 row marked, got %d", marked)
	}
	if s.DispositionFor("X100").State != DispositionDiscrepancy {
		t.Fatalf("X100 not marked short")
	}
	// A1 is not suspicious and must be untouched
	if s.DispositionFor("A1").State != DispositionUndecided {
		t.Fatalf("bulk-short touched a non-suspicious row")
	}

	// second pass finds nothing left to mark
	marked, err = s.BulkMarkShort()
	if err != nil {
		t.Fatalf("BulkMarkShort error: %v", err)
	}
	if marked != 0 {
		t.Fatalf("expected idempotent bulk-short, got %d", marked)
	}

	if err := s.ClearDiscrepancy("X100"); err != nil {
		t.Fatalf("ClearDiscrepancy error: %v", err)
	}
	if s.DispositionFor("X100").State != DispositionUndecided {
		t.Fatalf("X100 should be undecided after clear")
	}
}

func TestSession_NewRowSkipRoundTrip(t *testing.T) {
	s := newReviewFixture(t)

	if !s.IsNewRow("NEW1") {
		t.Fatalf("NEW1 should be a new row")
	}
	if err := s.Exclude("NEW1"); err != nil {
		t.Fatalf("Exclude error: %v", err)
	}
	// excluded rows leave the invoice lines
	for _, li := range s.LineItems() {
		if li.ItemCode == "NEW1" {
			t.Fatalf("excluded row still in line items")
		}
	}
	if err := s.Restore("NEW1"); err != nil {
		t.Fatalf("Restore error: %v", err)
	}
	if err := s.Skip("NEW1"); err != nil {
		t.Fatalf("Skip error: %v", err)
	}

	skipped := s.SkippedRows()
	if len(skipped) != 1 || skipped[0].ItemCode != "NEW1" {
		t.Fatalf("expected NEW1 staged as pending, got %+v", skipped)
	}
	if skipped[0].OrganizationId != "org-1" || skipped[0].VendorId != 7 {
		t.Fatalf("pending row missing tenant fields: %+v", skipped[0])
	}
	// skipped rows stay on the invoice
	found := false
	for _, li := range s.LineItems() {
		if li.ItemCode == "NEW1" {
			found = true
			if !li.IsNewItem {
				t.Fatalf("NEW1 should be flagged as new item")
			}
		}
	}
	if !found {
		t.Fatalf("skipped row missing from line items")
	}
}

func TestSession_ExcludeOnlyNewRows(t *testing.T) {
	s := newReviewFixture(t)

	if err := s.Exclude("A1"); err == nil {
		t.Fatalf("expected error excluding a catalog-matched row")
	}
	if err := s.Skip("A1"); err == nil {
		t.Fatalf("expected error skipping a catalog-matched row")
	}
	if err := s.Restore("NEW1"); err == nil {
		t.Fatalf("expected error restoring a row that is not excluded")
	}
}

func TestSession_CommitGating(t *testing.T) {
	s := newReviewFixture(t)

	if s.CommitReady() {
		t.Fatalf("fresh session must not be commit-ready")
	}
	unresolved := s.UnresolvedCodes()
	if len(unresolved) != 3 {
		t.Fatalf("expected all 3 rows unresolved, got %v", unresolved)
	}

	if err := s.Approve("A1"); err != nil {
		t.Fatalf("Approve error: %v", err)
	}
	if err := s.MarkDiscrepancy("X100", DiscrepancyShort, ""); err != nil {
		t.Fatalf("MarkDiscrepancy error: %v", err)
	}
	if s.CommitReady() {
		t.Fatalf("NEW1 unresolved, session must not be commit-ready")
	}
	if err := s.Skip("NEW1"); err != nil {
		t.Fatalf("Skip error: %v", err)
	}
	if !s.CommitReady() {
		t.Fatalf("expected commit-ready, unresolved: %v", s.UnresolvedCodes())
	}
}

func TestSession_QuickAddRemovesRowFromNewSet(t *testing.T) {
	s := newReviewFixture(t)

	if err := s.Skip("NEW1"); err != nil {
		t.Fatalf("Skip error: %v", err)
	}
	created := CatalogItem{ID: 3, ItemCode: "NEW1", ProductName: "New Sauce", CurrentPrice: decimal.NewFromFloat(7.25)}
	if err := s.RegisterQuickAdd("NEW1", created); err != nil {
		t.Fatalf("RegisterQuickAdd error: %v", err)
	}

	if s.IsNewRow("NEW1") {
		t.Fatalf("quick-added row must leave the new-item set")
	}
	// the prior skip mark is dropped and the row is commit-ready on its own
	if s.DispositionFor("NEW1").State != DispositionUndecided {
		t.Fatalf("skip mark should be dropped after quick-add")
	}
	if !s.rowCommitReady("NEW1") {
		t.Fatalf("quick-added row must be commit-ready")
	}
	// quick-added items contribute no price change this session
	if s.changeFor("NEW1") != nil {
		t.Fatalf("quick-added row must not surface a price change")
	}
	if len(s.SkippedRows()) != 0 {
		t.Fatalf("quick-added row still staged as pending")
	}

	if err := s.RegisterQuickAdd("NEW1", created); err == nil {
		t.Fatalf("expected error quick-adding twice")
	}
}

func TestSession_RefreshResetsStaleDecisions(t *testing.T) {
	s := newReviewFixture(t)

	if err := s.Approve("A1"); err != nil {
		t.Fatalf("Approve error: %v", err)
	}

	// A1's catalog price moved underneath the session: the approval was made
	// against a stale old price and must be voided.
	refreshed := []CatalogItem{
		{ID: 1, ItemCode: "A1", ProductName: "Tomatoes", CurrentPrice: decimal.NewFromInt(11)},
		{ID: 2, ItemCode: "X100", ProductName: "Mystery Box", CurrentPrice: decimal.NewFromInt(4)},
	}
	if err := s.RefreshSnapshot(refreshed); err != nil {
		t.Fatalf("RefreshSnapshot error: %v", err)
	}

	if got := s.DispositionFor("A1").State; got != DispositionUndecided {
		t.Fatalf("stale approval must reset, got %s", got)
	}
	c := s.changeFor("A1")
	if c == nil || c.OldPrice.String() != "11" {
		t.Fatalf("detection not re-run against new snapshot: %+v", c)
	}
	if c.Approved {
		t.Fatalf("stale approval carried over")
	}
	if len(s.ApprovedChanges()) != 0 {
		t.Fatalf("stale change leaked into approved set")
	}
}

func TestSession_RefreshKeepsUnchangedDecisions(t *testing.T) {
	s := newReviewFixture(t)

	if err := s.Approve("A1"); err != nil {
		t.Fatalf("Approve error: %v", err)
	}
	if err := s.MarkDiscrepancy("X100", DiscrepancyShort, "half delivered"); err != nil {
		t.Fatalf("MarkDiscrepancy error: %v", err)
	}

	// same old prices: every decision survives
	same := []CatalogItem{
		{ID: 1, ItemCode: "A1", ProductName: "Tomatoes", CurrentPrice: decimal.NewFromInt(10)},
		{ID: 2, ItemCode: "X100", ProductName: "Mystery Box", CurrentPrice: decimal.NewFromInt(4)},
	}
	if err := s.RefreshSnapshot(same); err != nil {
		t.Fatalf("RefreshSnapshot error: %v", err)
	}

	if got := s.DispositionFor("A1").State; got != DispositionApproved {
		t.Fatalf("unchanged approval dropped, got %s", got)
	}
	if got := s.DispositionFor("X100").State; got != DispositionDiscrepancy {
		t.Fatalf("discrepancy must survive refresh, got %s", got)
	}
	if c := s.changeFor("X100"); c.Approved || !c.Rejected {
		t.Fatalf("discrepancy row change must stay rejected: %+v", c)
	}
	if len(s.ApprovedChanges()) != 1 {
		t.Fatalf("expected A1 still approved, got %+v", s.ApprovedChanges())
	}
}

func TestSession_RefreshDropsOrphanedDispositions(t *testing.T) {
	s := newReviewFixture(t)

	if err := s.Skip("NEW1"); err != nil {
		t.Fatalf("Skip error: %v", err)
	}

	// NEW1 gained a catalog record out-of-band: the skip no longer fits a
	// matched row and is dropped.
	grown := []CatalogItem{
		{ID: 1, ItemCode: "A1", ProductName: "Tomatoes", CurrentPrice: decimal.NewFromInt(10)},
		{ID: 2, ItemCode: "X100", ProductName: "Mystery Box", CurrentPrice: decimal.NewFromInt(4)},
		{ID: 3, ItemCode: "NEW1", ProductName: "New Sauce", CurrentPrice: decimal.NewFromFloat(7.25)},
	}
	if err := s.RefreshSnapshot(grown); err != nil {
		t.Fatalf("RefreshSnapshot error: %v", err)
	}

	if s.IsNewRow("NEW1") {
		t.Fatalf("NEW1 should now be matched")
	}
	if got := s.DispositionFor("NEW1").State; got != DispositionUndecided {
		t.Fatalf("orphaned skip should drop, got %s", got)
	}
	if c := s.changeFor("NEW1"); c == nil {
		t.Fatalf("matched row should now have a price change entry")
	}
}

func TestSession_CommittedSessionRejectsMutation(t *testing.T) {
	s := newReviewFixture(t)
	s.Committed = true

	if err := s.Approve("A1"); !errors.Is(err, ErrSessionCommitted) {
		t.Fatalf("expected ErrSessionCommitted, got %v", err)
	}
	if err := s.ApplyMapping(s.Mapping); !errors.Is(err, ErrSessionCommitted) {
		t.Fatalf("expected ErrSessionCommitted, got %v", err)
	}
	if err := s.RefreshSnapshot(nil); !errors.Is(err, ErrSessionCommitted) {
		t.Fatalf("expected ErrSessionCommitted, got %v", err)
	}
	if _, err := s.BulkMarkShort(); !errors.Is(err, ErrSessionCommitted) {
		t.Fatalf("expected ErrSessionCommitted, got %v", err)
	}
}

func TestSession_RemapResetsDecisions(t *testing.T) {
	s := newReviewFixture(t)

	if err := s.Approve("A1"); err != nil {
		t.Fatalf("Approve error: %v", err)
	}
	if err := s.ApplyMapping(s.Mapping); err != nil {
		t.Fatalf("ApplyMapping error: %v", err)
	}
	if got := s.DispositionFor("A1").State; got != DispositionUndecided {
		t.Fatalf("remap must reset dispositions, got %s", got)
	}
}

func TestSession_QuickAddKeepsApprovedChanges(t *testing.T) {
	s := newReviewFixture(t)

	if err := s.Approve("A1"); err != nil {
		t.Fatalf("Approve error: %v", err)
	}
	if err := s.MarkDiscrepancy("X100", DiscrepancyShort, ""); err != nil {
		t.Fatalf("MarkDiscrepancy error: %v", err)
	}

	created := CatalogItem{ID: 3, ItemCode: "NEW1", ProductName: "New Sauce", CurrentPrice: decimal.NewFromFloat(7.25)}
	if err := s.RegisterQuickAdd("NEW1", created); err != nil {
		t.Fatalf("RegisterQuickAdd error: %v", err)
	}

	// decisions on the other rows did not lose their ground; they must survive
	approved := s.ApprovedChanges()
	if len(approved) != 1 || approved[0].ItemCode != "A1" {
		t.Fatalf("A1 approval lost after quick-add, got %+v", approved)
	}
	if approved[0].NewPrice.String() != "12" {
		t.Fatalf("unexpected approved price after quick-add: %+v", approved[0])
	}
	if change := s.changeFor("X100"); change == nil || !change.Rejected || change.Approved {
		t.Fatalf("X100 discrepancy rejection lost after quick-add: %+v", change)
	}
	if s.DispositionFor("A1").State != DispositionApproved {
		t.Fatalf("A1 disposition changed by quick-add")
	}
}

func TestSession_BulkMarkShortOverridesRejection(t *testing.T) {
	s := newReviewFixture(t)

	if err := s.Reject("X100"); err != nil {
		t.Fatalf("Reject error: %v", err)
	}

	// a rejected suspicious row carries no discrepancy yet; bulk-short takes it
	marked, err := s.BulkMarkShort()
	if err != nil {
		t.Fatalf("BulkMarkShort error: %v", err)
	}
	if marked != 1 {
		t.Fatalf("expected the rejected X100 row marked, got %d", marked)
	}
	d := s.DispositionFor("X100")
	if d.State != DispositionDiscrepancy || d.Discrepancy == nil || d.Discrepancy.Type != DiscrepancyShort {
		t.Fatalf("X100 not marked short: %+v", d)
	}
	if change := s.changeFor("X100"); change == nil || !change.Rejected || change.Approved {
		t.Fatalf("marked row's change must stay rejected: %+v", change)
	}
}
