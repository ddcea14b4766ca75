package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Service runs the invoice import pipeline against injected collaborators.
// Nothing here reaches for package-level state: every surface that shows the
// review wizard gets the same service instance and the same cache semantics.
type Service struct {
	Catalog  CatalogSource
	Writer   AuditTrailWriter
	Stager   PendingStager
	Adder    CatalogWriter
	Sessions SessionStore
	Logger   *logrus.Logger

	// Lock obtains a named lock and returns its release func.
	// nil disables locking (single-threaded tests).
	Lock func(ctx context.Context, key string, ttl time.Duration) (func(), error)

	// Now is overridable for deterministic invoice numbers in tests.
	Now func() time.Time
}

type CreateSessionInput struct {
	OrganizationId string
	VendorId       int
	UserId         int
	Filename       string
	File           io.Reader
	SheetName      string
	InvoiceDate    time.Time
}

// CommitResult is returned to the caller after a successful commit.
type CommitResult struct {
	BatchId           int    `json:"batch_id"`
	InvoiceNumber     string `json:"invoice_number"`
	PriceChangesCount int    `json:"price_changes_count"`
	LineItemCount     int    `json:"line_item_count"`
	PendingStaged     int    `json:"pending_staged"`
}

func (svc *Service) now() time.Time {
	if svc.Now != nil {
		return svc.Now()
	}
	return time.Now().UTC()
}

func (svc *Service) withLock(ctx context.Context, key string, ttl time.Duration, fn func() error) error {
	if svc.Lock == nil {
		return fn()
	}
	release, err := svc.Lock(ctx, key, ttl)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

// mutateSession runs fn on the stored session under the per-session lock and
// persists the result. Conflicting concurrent actions (commit vs refresh)
// serialize here instead of clobbering each other's snapshot.
func (svc *Service) mutateSession(ctx context.Context, id string, fn func(*ReviewSession) error) (*ReviewSession, error) {
	var session *ReviewSession
	err := svc.withLock(ctx, "import-session:"+id, 30*time.Second, func() error {
		var err error
		session, err = svc.Sessions.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(session); err != nil {
			return err
		}
		return svc.Sessions.Save(ctx, session)
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// CreateSession ingests the uploaded file, auto-suggests a column mapping,
// fetches the catalog snapshot and runs the first detection pass.
// A catalog fetch failure aborts the whole session: no partial price-change
// list is ever surfaced.
func (svc *Service) CreateSession(ctx context.Context, in CreateSessionInput) (*ReviewSession, error) {
	if in.OrganizationId == "" {
		return nil, errors.New("organization id is required")
	}
	if in.UserId == 0 {
		return nil, errors.New("user id is required")
	}

	parsed, err := ParseUpload(in.Filename, in.File)
	if err != nil {
		return nil, err
	}
	sheet := parsed.Sheets[0]
	if in.SheetName != "" {
		found := false
		for _, sh := range parsed.Sheets {
			if sh.Name == in.SheetName {
				sheet = sh
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("sheet %q not found in %s", in.SheetName, in.Filename)
		}
	}
	if len(sheet.Rows) == 0 {
		return nil, errors.New("selected sheet is empty")
	}

	items, err := svc.Catalog.FetchCatalog(ctx, in.OrganizationId)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog snapshot: %w", err)
	}
	snapshot := make(map[string]CatalogItem, len(items))
	for _, item := range items {
		snapshot[item.ItemCode] = item
	}

	invoiceDate := in.InvoiceDate
	if invoiceDate.IsZero() {
		invoiceDate = svc.now()
	}

	session := &ReviewSession{
		ID:              uuid.NewString(),
		OrganizationId:  in.OrganizationId,
		VendorId:        in.VendorId,
		SourceFilename:  in.Filename,
		InvoiceDate:     invoiceDate,
		CreatedByUserId: in.UserId,
		SheetName:       sheet.Name,
		RawRows:         sheet.Rows,
		Snapshot:        snapshot,
		Dispositions:    map[string]Disposition{},
		QuickAdded:      map[string]bool{},
		CreatedAt:       svc.now(),
	}

	mapping := SuggestMapping(sheet.Rows[0])
	if mapping.Validate() == nil {
		if err := session.ApplyMapping(mapping); err != nil {
			return nil, err
		}
	} else {
		// Required columns could not be guessed; the caller must remap
		// before the working set exists.
		session.Mapping = mapping
	}

	if err := svc.Sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (svc *Service) GetSession(ctx context.Context, id string) (*ReviewSession, error) {
	return svc.Sessions.Get(ctx, id)
}

// Remap re-extracts the working set with a caller-adjusted column mapping.
func (svc *Service) Remap(ctx context.Context, id string, m ColumnMapping) (*ReviewSession, error) {
	return svc.mutateSession(ctx, id, func(s *ReviewSession) error {
		return s.ApplyMapping(m)
	})
}

func (svc *Service) Approve(ctx context.Context, id, code string) (*ReviewSession, error) {
	return svc.mutateSession(ctx, id, func(s *ReviewSession) error { return s.Approve(code) })
}

func (svc *Service) Reject(ctx context.Context, id, code string) (*ReviewSession, error) {
	return svc.mutateSession(ctx, id, func(s *ReviewSession) error { return s.Reject(code) })
}

func (svc *Service) Exclude(ctx context.Context, id, code string) (*ReviewSession, error) {
	return svc.mutateSession(ctx, id, func(s *ReviewSession) error { return s.Exclude(code) })
}

func (svc *Service) Restore(ctx context.Context, id, code string) (*ReviewSession, error) {
	return svc.mutateSession(ctx, id, func(s *ReviewSession) error { return s.Restore(code) })
}

func (svc *Service) Skip(ctx context.Context, id, code string) (*ReviewSession, error) {
	return svc.mutateSession(ctx, id, func(s *ReviewSession) error { return s.Skip(code) })
}

func (svc *Service) MarkDiscrepancy(ctx context.Context, id, code string, typ DiscrepancyType, notes string) (*ReviewSession, error) {
	return svc.mutateSession(ctx, id, func(s *ReviewSession) error {
		return s.MarkDiscrepancy(code, typ, notes)
	})
}

func (svc *Service) ClearDiscrepancy(ctx context.Context, id, code string) (*ReviewSession, error) {
	return svc.mutateSession(ctx, id, func(s *ReviewSession) error { return s.ClearDiscrepancy(code) })
}

func (svc *Service) BulkMarkShort(ctx context.Context, id string) (int, error) {
	marked := 0
	_, err := svc.mutateSession(ctx, id, func(s *ReviewSession) error {
		var err error
		marked, err = s.BulkMarkShort()
		return err
	})
	return marked, err
}

// QuickAdd creates a catalog item for a new row and registers it with the
// session, removing the row from the new-item set.
func (svc *Service) QuickAdd(ctx context.Context, id, code, productName string, price decimal.Decimal, unitOfMeasure string) (*ReviewSession, error) {
	if svc.Adder == nil {
		return nil, errors.New("catalog writer is not configured")
	}
	return svc.mutateSession(ctx, id, func(s *ReviewSession) error {
		if s.Committed {
			return ErrSessionCommitted
		}
		if !s.IsNewRow(code) {
			return fmt.Errorf("item %s already exists in the catalog", code)
		}
		created, err := svc.Adder.CreateCatalogItem(ctx, s.OrganizationId, s.VendorId, CatalogItem{
			ItemCode:      code,
			ProductName:   productName,
			UnitOfMeasure: unitOfMeasure,
			CurrentPrice:  price,
		})
		if err != nil {
			return err
		}
		return s.RegisterQuickAdd(code, created)
	})
}

// Refresh replaces the catalog snapshot and re-runs detection, both under the
// session lock so an in-flight commit can never observe a half-refreshed
// session.
func (svc *Service) Refresh(ctx context.Context, id string) (*ReviewSession, error) {
	return svc.mutateSession(ctx, id, func(s *ReviewSession) error {
		items, err := svc.Catalog.FetchCatalog(ctx, s.OrganizationId)
		if err != nil {
			return fmt.Errorf("failed to fetch catalog snapshot: %w", err)
		}
		return s.RefreshSnapshot(items)
	})
}

// Commit validates readiness, stages skipped rows (best-effort), submits the
// batch to the audit-trail writer and marks the session committed.
// An unresolved row blocks before anything is written. Writer errors are
// surfaced verbatim and the session stays uncommitted.
func (svc *Service) Commit(ctx context.Context, id string) (*CommitResult, error) {
	var result *CommitResult
	_, err := svc.mutateSession(ctx, id, func(s *ReviewSession) error {
		return svc.withLock(ctx, "import-commit:"+s.OrganizationId, time.Minute, func() error {
			batch, approved, pending, err := BuildCommit(s, svc.now())
			if err != nil {
				return err
			}

			staged := 0
			if len(pending) > 0 && svc.Stager != nil {
				if err := svc.Stager.UpsertPending(ctx, pending); err != nil {
					// Best-effort: staging failure never blocks the commit.
					if svc.Logger != nil {
						svc.Logger.WithFields(logrus.Fields{
							"module":          "importer",
							"funcName":        "Commit",
							"session_id":      s.ID,
							"organization_id": s.OrganizationId,
						}).Warn("failed to stage pending items: " + err.Error())
					}
				} else {
					staged = len(pending)
				}
			}

			receipt, err := svc.Writer.CommitImport(ctx, *batch, approved)
			if err != nil {
				return err
			}

			s.Committed = true
			s.CommittedBatchId = receipt.BatchId
			result = &CommitResult{
				BatchId:           receipt.BatchId,
				InvoiceNumber:     batch.InvoiceNumber,
				PriceChangesCount: receipt.PriceChangesCount,
				LineItemCount:     len(batch.LineItems),
				PendingStaged:     staged,
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
