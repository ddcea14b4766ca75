package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/kitchenops_backend/config"
	"bitbucket.org/mmdatafocus/kitchenops_backend/importer"
	"bitbucket.org/mmdatafocus/kitchenops_backend/utils"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ImportBatch struct {
	ID                int              `gorm:"primary_key" json:"id"`
	OrganizationId    string           `gorm:"index:idx_batch_invoice,unique,priority:1;not null" json:"organization_id"`
	VendorId          int              `gorm:"index:idx_batch_invoice,unique,priority:2;not null" json:"vendor_id"`
	InvoiceNumber     string           `gorm:"size:255;not null;index:idx_batch_invoice,unique,priority:3" json:"invoice_number"`
	InvoiceDate       time.Time        `gorm:"index;not null" json:"invoice_date"`
	SourceFilename    string           `gorm:"size:255" json:"source_filename"`
	SessionId         string           `gorm:"size:64;index" json:"session_id"`
	CommittedByUserId int              `gorm:"not null" json:"committed_by_user_id"`
	LineItemCount     int              `gorm:"not null;default:0" json:"line_item_count"`
	PriceChangeCount  int              `gorm:"not null;default:0" json:"price_change_count"`
	LineItems         []ImportLineItem `gorm:"foreignKey:ImportBatchId" json:"line_items"`
	CreatedAt         time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

type ImportLineItem struct {
	ID             int             `gorm:"primary_key" json:"id"`
	ImportBatchId  int             `gorm:"index;not null" json:"import_batch_id"`
	OrganizationId string          `gorm:"index;not null" json:"organization_id"`
	ItemCode       string          `gorm:"size:100;not null" json:"item_code"`
	ProductName    string          `gorm:"size:255" json:"product_name"`
	UnitPrice      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	UnitOfMeasure  string          `gorm:"size:50" json:"unit_of_measure"`
	Quantity       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	IsNewItem      bool            `gorm:"not null;default:false" json:"is_new_item"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// importCommitSummary is the outbox payload for a committed batch.
type importCommitSummary struct {
	BatchId          int       `json:"batch_id"`
	VendorId         int       `json:"vendor_id"`
	InvoiceNumber    string    `json:"invoice_number"`
	InvoiceDate      time.Time `json:"invoice_date"`
	LineItemCount    int       `json:"line_item_count"`
	PriceChangeCount int       `json:"price_change_count"`
}

var ErrDuplicateInvoice = errors.New("invoice has already been imported for this vendor")

// CommitImport persists a reviewed batch in a single transaction: the batch
// header, its line items, one price history row per approved change, the
// catalog price updates, an audit row and the outbox record. Either all of it
// lands or none of it does.
func CommitImport(ctx context.Context, batch importer.ImportBatch, approvedChanges []importer.ApprovedChange) (importer.CommitReceipt, error) {

	var receipt importer.CommitReceipt

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return receipt, errors.New("organization id is required")
	}
	if batch.OrganizationId != organizationId {
		return receipt, errors.New("cannot commit a batch owned by another organization")
	}

	db := config.GetDB()
	tx := db.Begin()

	record := ImportBatch{
		OrganizationId:    batch.OrganizationId,
		VendorId:          batch.VendorId,
		InvoiceNumber:     batch.InvoiceNumber,
		InvoiceDate:       batch.InvoiceDate,
		SourceFilename:    batch.SourceFilename,
		SessionId:         batch.SessionId,
		CommittedByUserId: batch.CreatedByUserId,
		LineItemCount:     len(batch.LineItems),
		PriceChangeCount:  len(approvedChanges),
	}
	for _, line := range batch.LineItems {
		record.LineItems = append(record.LineItems, ImportLineItem{
			OrganizationId: batch.OrganizationId,
			ItemCode:       line.ItemCode,
			ProductName:    line.ProductName,
			UnitPrice:      line.UnitPrice,
			UnitOfMeasure:  line.UnitOfMeasure,
			Quantity:       line.Quantity,
			IsNewItem:      line.IsNewItem,
		})
	}

	if err := tx.WithContext(ctx).Create(&record).Error; err != nil {
		tx.Rollback()
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
			return receipt, ErrDuplicateInvoice
		}
		return receipt, err
	}

	for _, change := range approvedChanges {
		var item CatalogItem
		err := tx.WithContext(ctx).
			Where("organization_id = ? AND item_code = ?", batch.OrganizationId, change.ItemCode).
			First(&item).Error
		if err != nil {
			tx.Rollback()
			if err == gorm.ErrRecordNotFound {
				return receipt, fmt.Errorf("catalog item %s no longer exists", change.ItemCode)
			}
			return receipt, err
		}

		history := PriceHistory{
			OrganizationId: batch.OrganizationId,
			CatalogItemId:  item.ID,
			ItemCode:       item.ItemCode,
			ImportBatchId:  record.ID,
			OldPrice:       change.OldPrice,
			NewPrice:       change.NewPrice,
			EffectiveDate:  batch.InvoiceDate,
		}
		if err := tx.WithContext(ctx).Create(&history).Error; err != nil {
			tx.Rollback()
			return receipt, err
		}

		if err := tx.WithContext(ctx).Model(&item).
			UpdateColumn("CurrentPrice", change.NewPrice).Error; err != nil {
			tx.Rollback()
			return receipt, err
		}
	}

	if err := saveHistoryFor(tx.WithContext(ctx), "CREATE", record.ID, ReferenceTypeImportBatch, nil, record,
		fmt.Sprintf("invoice %s imported: %d line items, %d price changes", record.InvoiceNumber, record.LineItemCount, record.PriceChangeCount)); err != nil {
		tx.Rollback()
		return receipt, err
	}

	summary := importCommitSummary{
		BatchId:          record.ID,
		VendorId:         record.VendorId,
		InvoiceNumber:    record.InvoiceNumber,
		InvoiceDate:      record.InvoiceDate,
		LineItemCount:    record.LineItemCount,
		PriceChangeCount: record.PriceChangeCount,
	}
	if err := StageOutboxEvent(ctx, tx.WithContext(ctx), batch.OrganizationId, record.CreatedAt, record.ID, ReferenceTypeImportBatch, NotificationActionCreate, summary); err != nil {
		tx.Rollback()
		return receipt, err
	}

	if err := tx.Commit().Error; err != nil {
		return receipt, err
	}

	// the snapshot cache is stale once prices move
	if len(approvedChanges) > 0 {
		if err := utils.RemoveRedisList[CatalogItem](batch.OrganizationId); err != nil {
			return receipt, err
		}
	}

	receipt.BatchId = record.ID
	receipt.PriceChangesCount = len(approvedChanges)
	return receipt, nil
}

func GetImportBatch(ctx context.Context, id int) (*ImportBatch, error) {

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	return utils.FetchModel[ImportBatch](ctx, organizationId, id, "LineItems")
}

func GetImportBatches(ctx context.Context, vendorId *int) ([]*ImportBatch, error) {
	db := config.GetDB()
	var results []*ImportBatch

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	dbCtx := db.WithContext(ctx).Where("organization_id = ?", organizationId)
	if vendorId != nil && *vendorId > 0 {
		dbCtx = dbCtx.Where("vendor_id = ?", *vendorId)
	}
	if err := dbCtx.Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
