package importer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

const fixtureCsv = "Item Code,Product Name,Unit Price,Unit,Qty\n" +
	"A1,Tomatoes,12,case,3\n" +
	"A1,Tomatoes dup,99,case,1\n" +
	"X100,Mystery Box,0,each,1\n" +
	"NEW1,New Sauce,7.25,jar,2\n"

type fakeCatalog struct {
	items []CatalogItem
	err   error
	calls int
}

func (f *fakeCatalog) FetchCatalog(ctx context.Context, organizationId string) ([]CatalogItem, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

type fakeWriter struct {
	calls    int
	batch    ImportBatch
	approved []ApprovedChange
	receipt  CommitReceipt
	err      error
}

func (f *fakeWriter) CommitImport(ctx context.Context, batch ImportBatch, approvedChanges []ApprovedChange) (CommitReceipt, error) {
	f.calls++
	f.batch = batch
	f.approved = approvedChanges
	if f.err != nil {
		return CommitReceipt{}, f.err
	}
	return f.receipt, nil
}

type fakeStager struct {
	calls int
	rows  []PendingRow
	err   error
}

func (f *fakeStager) UpsertPending(ctx context.Context, rows []PendingRow) error {
	f.calls++
	f.rows = rows
	return f.err
}

type fakeAdder struct {
	nextId int
	calls  int
}

func (f *fakeAdder) CreateCatalogItem(ctx context.Context, organizationId string, vendorId int, item CatalogItem) (CatalogItem, error) {
	f.calls++
	f.nextId++
	item.ID = f.nextId
	return item, nil
}

func newTestService(catalog *fakeCatalog, writer *fakeWriter, stager *fakeStager, adder *fakeAdder) *Service {
	return &Service{
		Catalog:  catalog,
		Writer:   writer,
		Stager:   stager,
		Adder:    adder,
		Sessions: NewMemorySessionStore(),
		Now:      func() time.Time { return time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC) },
	}
}

func fixtureCatalog() *fakeCatalog {
	return &fakeCatalog{items: []CatalogItem{
		{ID: 1, ItemCode: "A1", ProductName: "Tomatoes", CurrentPrice: decimal.NewFromInt(10)},
		{ID: 2, ItemCode: "X100", ProductName: "Mystery Box", CurrentPrice: decimal.NewFromInt(4)},
	}}
}

func createFixtureSession(t *testing.T, svc *Service) *ReviewSession {
	t.Helper()
	s, err := svc.CreateSession(context.Background(), CreateSessionInput{
		OrganizationId: "org-1",
		VendorId:       7,
		UserId:         3,
		Filename:       "invoice-4412.csv",
		File:           strings.NewReader(fixtureCsv),
	})
	if err != nil {
		t.Fatalf("CreateSession error: %v", err)
	}
	return s
}

func TestService_CreateSession(t *testing.T) {
	catalog := fixtureCatalog()
	svc := newTestService(catalog, &fakeWriter{}, &fakeStager{}, &fakeAdder{})

	s := createFixtureSession(t, svc)
	if catalog.calls != 1 {
		t.Fatalf("expected one catalog fetch, got %d", catalog.calls)
	}
	// mapping auto-suggested and applied, duplicate A1 suppressed
	if len(s.Rows) != 3 {
		t.Fatalf("expected 3 de-duplicated rows, got %d", len(s.Rows))
	}
	if len(s.Changes) != 2 {
		t.Fatalf("expected changes for A1 and X100, got %d", len(s.Changes))
	}
	if s.InvoiceDate.IsZero() {
		t.Fatalf("invoice date should default to now")
	}

	// round-trips through the store
	got, err := svc.GetSession(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("GetSession error: %v", err)
	}
	if got.ID != s.ID || len(got.Rows) != 3 {
		t.Fatalf("stored session mismatch: %+v", got)
	}
}

func TestService_CreateSessionCatalogFailureAborts(t *testing.T) {
	svc := newTestService(&fakeCatalog{err: errors.New("db down")}, &fakeWriter{}, &fakeStager{}, &fakeAdder{})

	_, err := svc.CreateSession(context.Background(), CreateSessionInput{
		OrganizationId: "org-1",
		UserId:         3,
		Filename:       "invoice.csv",
		File:           strings.NewReader(fixtureCsv),
	})
	if err == nil || !strings.Contains(err.Error(), "catalog snapshot") {
		t.Fatalf("expected catalog fetch failure to abort the session, got %v", err)
	}
}

func TestService_CreateSessionUnguessableHeaders(t *testing.T) {
	svc := newTestService(fixtureCatalog(), &fakeWriter{}, &fakeStager{}, &fakeAdder{})

	csvData := "Col A,Col B,Col C\nA1,Tomatoes,12\n"
	s, err := svc.CreateSession(context.Background(), CreateSessionInput{
		OrganizationId: "org-1",
		UserId:         3,
		Filename:       "cryptic.csv",
		File:           strings.NewReader(csvData),
	})
	if err != nil {
		t.Fatalf("CreateSession error: %v", err)
	}
	// no working set until the caller remaps
	if len(s.Rows) != 0 {
		t.Fatalf("expected no working set for unguessable headers, got %d rows", len(s.Rows))
	}

	remapped, err := svc.Remap(context.Background(), s.ID, ColumnMapping{ItemCode: 0, ProductName: 1, UnitPrice: 2, UnitOfMeasure: -1, Quantity: -1})
	if err != nil {
		t.Fatalf("Remap error: %v", err)
	}
	if len(remapped.Rows) != 1 || remapped.Rows[0].ItemCode != "A1" {
		t.Fatalf("remap did not extract the working set: %+v", remapped.Rows)
	}
}

func TestService_CommitGatingNeverInvokesWriter(t *testing.T) {
	writer := &fakeWriter{}
	stager := &fakeStager{}
	svc := newTestService(fixtureCatalog(), writer, stager, &fakeAdder{})
	s := createFixtureSession(t, svc)

	_, err := svc.Commit(context.Background(), s.ID)
	var unresolved *UnresolvedRowsError
	if !errors.As(err, &unresolved) {
		t.Fatalf("expected UnresolvedRowsError, got %v", err)
	}
	if writer.calls != 0 {
		t.Fatalf("writer must not be invoked while rows are unresolved")
	}
	if stager.calls != 0 {
		t.Fatalf("stager must not be invoked while rows are unresolved")
	}
}

func resolveFixtureRows(t *testing.T, svc *Service, id string) {
	t.Helper()
	ctx := context.Background()
	if _, err := svc.Approve(ctx, id, "A1"); err != nil {
		t.Fatalf("Approve error: %v", err)
	}
	if _, err := svc.MarkDiscrepancy(ctx, id, "X100", DiscrepancyShort, "half delivered"); err != nil {
		t.Fatalf("MarkDiscrepancy error: %v", err)
	}
	if _, err := svc.Skip(ctx, id, "NEW1"); err != nil {
		t.Fatalf("Skip error: %v", err)
	}
}

func TestService_CommitHappyPath(t *testing.T) {
	writer := &fakeWriter{receipt: CommitReceipt{BatchId: 41, PriceChangesCount: 1}}
	stager := &fakeStager{}
	svc := newTestService(fixtureCatalog(), writer, stager, &fakeAdder{})
	s := createFixtureSession(t, svc)
	resolveFixtureRows(t, svc, s.ID)

	result, err := svc.Commit(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("Commit error: %v", err)
	}
	if result.BatchId != 41 || result.InvoiceNumber != "invoice-4412" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.PriceChangesCount != 1 || result.LineItemCount != 3 || result.PendingStaged != 1 {
		t.Fatalf("unexpected counters: %+v", result)
	}
	if writer.calls != 1 {
		t.Fatalf("expected one writer call, got %d", writer.calls)
	}
	if len(writer.approved) != 1 || writer.approved[0].ItemCode != "A1" {
		t.Fatalf("unexpected approved changes: %+v", writer.approved)
	}
	if len(stager.rows) != 1 || stager.rows[0].ItemCode != "NEW1" {
		t.Fatalf("unexpected staged rows: %+v", stager.rows)
	}

	committed, err := svc.GetSession(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("GetSession error: %v", err)
	}
	if !committed.Committed || committed.CommittedBatchId != 41 {
		t.Fatalf("session not marked committed: %+v", committed)
	}

	// re-commit is blocked
	if _, err := svc.Commit(context.Background(), s.ID); !errors.Is(err, ErrSessionCommitted) {
		t.Fatalf("expected ErrSessionCommitted on re-commit, got %v", err)
	}
	if writer.calls != 1 {
		t.Fatalf("writer invoked again on re-commit")
	}
}

func TestService_CommitStagingFailureIsBestEffort(t *testing.T) {
	writer := &fakeWriter{receipt: CommitReceipt{BatchId: 42, PriceChangesCount: 1}}
	stager := &fakeStager{err: errors.New("pending table unavailable")}
	svc := newTestService(fixtureCatalog(), writer, stager, &fakeAdder{})
	s := createFixtureSession(t, svc)
	resolveFixtureRows(t, svc, s.ID)

	result, err := svc.Commit(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("staging failure must not block the commit: %v", err)
	}
	if result.PendingStaged != 0 {
		t.Fatalf("failed staging must report zero staged rows, got %d", result.PendingStaged)
	}
	if writer.calls != 1 {
		t.Fatalf("writer should still run, got %d calls", writer.calls)
	}
}

func TestService_CommitWriterFailureLeavesSessionOpen(t *testing.T) {
	writer := &fakeWriter{err: errors.New("duplicate invoice")}
	svc := newTestService(fixtureCatalog(), writer, &fakeStager{}, &fakeAdder{})
	s := createFixtureSession(t, svc)
	resolveFixtureRows(t, svc, s.ID)

	if _, err := svc.Commit(context.Background(), s.ID); err == nil {
		t.Fatalf("expected writer error to surface")
	}
	open, err := svc.GetSession(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("GetSession error: %v", err)
	}
	if open.Committed {
		t.Fatalf("session must stay uncommitted after a writer failure")
	}
}

func TestService_QuickAdd(t *testing.T) {
	adder := &fakeAdder{nextId: 10}
	svc := newTestService(fixtureCatalog(), &fakeWriter{}, &fakeStager{}, adder)
	s := createFixtureSession(t, svc)

	updated, err := svc.QuickAdd(context.Background(), s.ID, "NEW1", "New Sauce", decimal.NewFromFloat(7.25), "jar")
	if err != nil {
		t.Fatalf("QuickAdd error: %v", err)
	}
	if adder.calls != 1 {
		t.Fatalf("expected one catalog create, got %d", adder.calls)
	}
	if updated.IsNewRow("NEW1") {
		t.Fatalf("quick-added row still in new set")
	}

	// already matched rows cannot be quick-added
	if _, err := svc.QuickAdd(context.Background(), s.ID, "A1", "Tomatoes", decimal.NewFromInt(12), "case"); err == nil {
		t.Fatalf("expected error quick-adding an existing item")
	}
}

func TestService_RefreshReFetchesCatalog(t *testing.T) {
	catalog := fixtureCatalog()
	svc := newTestService(catalog, &fakeWriter{}, &fakeStager{}, &fakeAdder{})
	s := createFixtureSession(t, svc)

	if _, err := svc.Approve(context.Background(), s.ID, "A1"); err != nil {
		t.Fatalf("Approve error: %v", err)
	}

	// price moved underneath the review
	catalog.items[0].CurrentPrice = decimal.NewFromInt(11)
	refreshed, err := svc.Refresh(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if catalog.calls != 2 {
		t.Fatalf("expected a second catalog fetch, got %d", catalog.calls)
	}
	if got := refreshed.DispositionFor("A1").State; got != DispositionUndecided {
		t.Fatalf("stale approval must reset after refresh, got %s", got)
	}
}

func TestService_GetSessionNotFound(t *testing.T) {
	svc := newTestService(fixtureCatalog(), &fakeWriter{}, &fakeStager{}, &fakeAdder{})
	if _, err := svc.GetSession(context.Background(), "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestService_SheetSelection(t *testing.T) {
	svc := newTestService(fixtureCatalog(), &fakeWriter{}, &fakeStager{}, &fakeAdder{})
	_, err := svc.CreateSession(context.Background(), CreateSessionInput{
		OrganizationId: "org-1",
		UserId:         3,
		Filename:       "invoice.csv",
		File:           strings.NewReader(fixtureCsv),
		SheetName:      "does-not-exist",
	})
	if err == nil {
		t.Fatalf("expected error for unknown sheet name")
	}
}
