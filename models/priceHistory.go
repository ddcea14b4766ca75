package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/kitchenops_backend/config"
	"bitbucket.org/mmdatafocus/kitchenops_backend/utils"
	"github.com/shopspring/decimal"
)

// PriceHistory records every approved price mutation. Rows are only written
// by CommitImport, inside the batch transaction.
type PriceHistory struct {
	ID             int             `gorm:"primary_key" json:"id"`
	OrganizationId string          `gorm:"index;not null" json:"organization_id"`
	CatalogItemId  int             `gorm:"index;not null" json:"catalog_item_id"`
	ItemCode       string          `gorm:"size:100;index" json:"item_code"`
	ImportBatchId  int             `gorm:"index;not null" json:"import_batch_id"`
	OldPrice       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"old_price"`
	NewPrice       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"new_price"`
	EffectiveDate  time.Time       `gorm:"index;not null" json:"effective_date"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func GetPriceHistories(ctx context.Context, catalogItemId int) ([]*PriceHistory, error) {
	db := config.GetDB()
	var results []*PriceHistory

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	if err := db.WithContext(ctx).
		Where("organization_id = ? AND catalog_item_id = ?", organizationId, catalogItemId).
		Order("effective_date DESC, id DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
