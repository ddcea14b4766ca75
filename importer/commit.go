package importer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// CatalogSource supplies the organization's catalog snapshot.
type CatalogSource interface {
	FetchCatalog(ctx context.Context, organizationId string) ([]CatalogItem, error)
}

// CatalogWriter creates catalog items for the inline quick-add flow.
type CatalogWriter interface {
	CreateCatalogItem(ctx context.Context, organizationId string, vendorId int, item CatalogItem) (CatalogItem, error)
}

// AuditTrailWriter persists a committed batch. It is the only write path that
// mutates price history.
type AuditTrailWriter interface {
	CommitImport(ctx context.Context, batch ImportBatch, approvedChanges []ApprovedChange) (CommitReceipt, error)
}

// PendingStager stages skipped new-item rows for later resolution.
// The upsert is keyed (org, vendor, item_code, status): re-submitting the
// same session must not create duplicate pending rows. Failures here are
// best-effort and never block the commit.
type PendingStager interface {
	UpsertPending(ctx context.Context, rows []PendingRow) error
}

// UnresolvedRowsError blocks a commit before any network call is made.
type UnresolvedRowsError struct {
	ItemCodes []string
}

func (e *UnresolvedRowsError) Error() string {
	return fmt.Sprintf("%d rows are unresolved: %s", len(e.ItemCodes), strings.Join(e.ItemCodes, ", "))
}

// DeriveInvoiceNumber prefers the source filename with its extension
// stripped; without one it synthesizes vendor+date+timestamp so the number
// is unique within a session.
func DeriveInvoiceNumber(sourceFilename string, vendorId int, invoiceDate time.Time, now time.Time) string {
	name := strings.TrimSpace(filepath.Base(sourceFilename))
	if name != "" && name != "." {
		if ext := filepath.Ext(name); ext != "" {
			name = strings.TrimSuffix(name, ext)
		}
		if name != "" {
			return name
		}
	}
	return fmt.Sprintf("%d-%s-%d", vendorId, invoiceDate.Format("20060102"), now.UnixNano())
}

// BuildCommit validates commit-readiness and assembles the batch payload.
// It performs no I/O: a precondition failure leaves everything untouched.
func BuildCommit(s *ReviewSession, now time.Time) (*ImportBatch, []ApprovedChange, []PendingRow, error) {
	if s.Committed {
		return nil, nil, nil, ErrSessionCommitted
	}
	if unresolved := s.UnresolvedCodes(); len(unresolved) > 0 {
		return nil, nil, nil, &UnresolvedRowsError{ItemCodes: unresolved}
	}
	if s.OrganizationId == "" {
		return nil, nil, nil, fmt.Errorf("organization id is required")
	}
	if s.CreatedByUserId == 0 {
		return nil, nil, nil, fmt.Errorf("user id is required")
	}

	batch := &ImportBatch{
		OrganizationId:  s.OrganizationId,
		VendorId:        s.VendorId,
		InvoiceNumber:   DeriveInvoiceNumber(s.SourceFilename, s.VendorId, s.InvoiceDate, now),
		InvoiceDate:     s.InvoiceDate,
		SourceFilename:  s.SourceFilename,
		SessionId:       s.ID,
		CreatedByUserId: s.CreatedByUserId,
		LineItems:       s.LineItems(),
	}
	return batch, s.ApprovedChanges(), s.SkippedRows(), nil
}
