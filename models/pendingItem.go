package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/kitchenops_backend/config"
	"bitbucket.org/mmdatafocus/kitchenops_backend/importer"
	"bitbucket.org/mmdatafocus/kitchenops_backend/utils"
	"github.com/go-sql-driver/mysql"
)

// PendingItem is a staged new-item row from an import that the reviewer
// skipped. It waits for manual resolution outside the import flow.
type PendingItem struct {
	ID             int               `gorm:"primary_key" json:"id"`
	OrganizationId string            `gorm:"index:idx_pending_row,unique,priority:1;not null" json:"organization_id"`
	VendorId       int               `gorm:"index:idx_pending_row,unique,priority:2" json:"vendor_id"`
	ItemCode       string            `gorm:"size:100;not null;index:idx_pending_row,unique,priority:3" json:"item_code"`
	Status         PendingItemStatus `gorm:"type:enum('Pending','Resolved','Dismissed');default:'Pending';index:idx_pending_row,unique,priority:4" json:"status"`
	ProductName    string            `gorm:"size:255" json:"product_name"`
	UnitPrice      string            `gorm:"size:50" json:"unit_price"`
	UnitOfMeasure  string            `gorm:"size:50" json:"unit_of_measure"`
	CreatedAt      time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

const mysqlDuplicateEntry = 1062

// UpsertPendingItems stages skipped rows. The unique key on
// (organization, vendor, item_code, status) makes re-submitting the same
// session a no-op for rows already staged.
func UpsertPendingItems(ctx context.Context, rows []importer.PendingRow) error {
	if len(rows) == 0 {
		return nil
	}

	db := config.GetDB()
	for _, row := range rows {
		item := PendingItem{
			OrganizationId: row.OrganizationId,
			VendorId:       row.VendorId,
			ItemCode:       row.ItemCode,
			Status:         PendingItemStatusPending,
			ProductName:    row.ProductName,
			UnitPrice:      row.UnitPrice,
			UnitOfMeasure:  row.UnitOfMeasure,
		}
		err := db.WithContext(ctx).Create(&item).Error
		if err != nil {
			var mysqlErr *mysql.MySQLError
			if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
				continue
			}
			return err
		}
	}
	return nil
}

// ResolvePendingItem marks a staged row resolved or dismissed.
func ResolvePendingItem(ctx context.Context, id int, status PendingItemStatus) (*PendingItem, error) {
	if status != PendingItemStatusResolved && status != PendingItemStatusDismissed {
		return nil, ErrInvalidPendingStatus
	}

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	item, err := utils.FetchModel[PendingItem](ctx, organizationId, id)
	if err != nil {
		return nil, err
	}
	if item.Status != PendingItemStatusPending {
		return nil, errors.New("pending item is already resolved")
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(item).Update("Status", status).Error; err != nil {
		return nil, err
	}
	return item, nil
}

func GetPendingItems(ctx context.Context, vendorId *int, status *PendingItemStatus) ([]*PendingItem, error) {
	db := config.GetDB()
	var results []*PendingItem

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	dbCtx := db.WithContext(ctx).Where("organization_id = ?", organizationId)
	if vendorId != nil && *vendorId > 0 {
		dbCtx = dbCtx.Where("vendor_id = ?", *vendorId)
	}
	if status != nil && *status != "" {
		dbCtx = dbCtx.Where("status = ?", *status)
	}
	if err := dbCtx.Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
