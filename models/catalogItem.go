package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/kitchenops_backend/config"
	"bitbucket.org/mmdatafocus/kitchenops_backend/importer"
	"bitbucket.org/mmdatafocus/kitchenops_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

type CatalogItem struct {
	ID             int             `gorm:"primary_key" json:"id"`
	OrganizationId string          `gorm:"index:idx_catalog_code,unique,priority:1;not null" json:"organization_id" binding:"required"`
	VendorId       int             `gorm:"index" json:"vendor_id"`
	ItemCode       string          `gorm:"size:100;not null;index:idx_catalog_code,unique,priority:2" json:"item_code" binding:"required"`
	ProductName    string          `gorm:"size:255;not null" json:"product_name" binding:"required"`
	UnitOfMeasure  string          `gorm:"size:50" json:"unit_of_measure"`
	CurrentPrice   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"current_price"`
	IsActive       *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCatalogItem struct {
	VendorId      int             `json:"vendor_id"`
	ItemCode      string          `json:"item_code" binding:"required"`
	ProductName   string          `json:"product_name" binding:"required"`
	UnitOfMeasure string          `json:"unit_of_measure"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
}

/*
caches:
	CatalogItem:$id
	CatalogItemList:$organizationId
*/

func (obj CatalogItem) RemoveInstanceRedis() error {
	return utils.RemoveRedisItem[CatalogItem](obj.ID)
}

func (obj CatalogItem) RemoveAllRedis() error {
	return utils.RemoveRedisList[CatalogItem](obj.OrganizationId)
}

func (input *NewCatalogItem) validate(ctx context.Context, organizationId string, id int) error {
	if strings.TrimSpace(input.ItemCode) == "" {
		return errors.New("item code is required")
	}
	if err := utils.ValidateUnique[CatalogItem](ctx, organizationId, "item_code", input.ItemCode, id); err != nil {
		return err
	}
	if input.VendorId != 0 {
		if err := utils.ValidateResourceId[Vendor](ctx, organizationId, input.VendorId); err != nil {
			return errors.New("vendor not found")
		}
	}
	return nil
}

func CreateCatalogItem(ctx context.Context, input *NewCatalogItem) (*CatalogItem, error) {

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	if err := input.validate(ctx, organizationId, 0); err != nil {
		return nil, err
	}

	item := CatalogItem{
		OrganizationId: organizationId,
		VendorId:       input.VendorId,
		ItemCode:       strings.TrimSpace(input.ItemCode),
		ProductName:    input.ProductName,
		UnitOfMeasure:  input.UnitOfMeasure,
		CurrentPrice:   input.CurrentPrice,
		IsActive:       utils.NewTrue(),
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&item).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := saveHistoryFor(tx.WithContext(ctx), "CREATE", item.ID, ReferenceTypeCatalogItem, nil, item, "catalog item created"); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	if err := RemoveRedisBoth(item); err != nil {
		return nil, err
	}
	return &item, nil
}

func UpdateCatalogItem(ctx context.Context, id int, input *NewCatalogItem) (*CatalogItem, error) {

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	item, err := utils.FetchModel[CatalogItem](ctx, organizationId, id)
	if err != nil {
		return nil, err
	}

	if err := input.validate(ctx, organizationId, id); err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.Begin()
	err = tx.WithContext(ctx).Model(item).
		Updates(map[string]interface{}{
			"VendorId":      input.VendorId,
			"ItemCode":      strings.TrimSpace(input.ItemCode),
			"ProductName":   input.ProductName,
			"UnitOfMeasure": input.UnitOfMeasure,
			"CurrentPrice":  input.CurrentPrice,
		}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	if err := RemoveRedisBoth(*item); err != nil {
		return nil, err
	}
	return item, nil
}

func GetCatalogItem(ctx context.Context, id int) (*CatalogItem, error) {
	return GetResource[CatalogItem](ctx, id)
}

func GetCatalogItems(ctx context.Context, vendorId *int, itemCode *string) ([]*CatalogItem, error) {
	db := config.GetDB()
	var results []*CatalogItem

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	dbCtx := db.WithContext(ctx).Where("organization_id = ?", organizationId)
	if vendorId != nil && *vendorId > 0 {
		dbCtx = dbCtx.Where("vendor_id = ?", *vendorId)
	}
	if itemCode != nil && len(*itemCode) > 0 {
		dbCtx = dbCtx.Where("item_code LIKE ?", "%"+*itemCode+"%")
	}
	if err := dbCtx.Order("item_code").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// FetchCatalogSnapshot returns the reviewer-facing snapshot of the active
// catalog, redis first. The list cache is invalidated explicitly whenever a
// catalog item is written.
func FetchCatalogSnapshot(ctx context.Context, organizationId string) ([]importer.CatalogItem, error) {

	results, err := utils.RetrieveRedisList[CatalogItem](organizationId)
	if err != nil {
		return nil, err
	}
	if results == nil {
		db := config.GetDB()
		if err := db.WithContext(ctx).
			Where("organization_id = ? AND is_active = ?", organizationId, true).
			Order("item_code").
			Find(&results).Error; err != nil {
			return nil, err
		}
		if err := utils.StoreRedisList[CatalogItem](results, organizationId); err != nil {
			return nil, err
		}
	}

	snapshot := make([]importer.CatalogItem, 0, len(results))
	for _, item := range results {
		snapshot = append(snapshot, importer.CatalogItem{
			ID:            item.ID,
			ItemCode:      item.ItemCode,
			ProductName:   item.ProductName,
			UnitOfMeasure: item.UnitOfMeasure,
			CurrentPrice:  item.CurrentPrice,
		})
	}
	return snapshot, nil
}

// ImportCatalogFromXlsx bulk-creates catalog items from a spreadsheet with
// Item Code / Product Name / Unit Price / Unit columns. Rows whose item code
// already exists are skipped and reported, not treated as errors.
func ImportCatalogFromXlsx(ctx context.Context, vendorId int, filename string, file io.Reader) (string, error) {
	if file == nil {
		return "", errors.New("nil file provided")
	}
	if !strings.HasSuffix(filename, ".xlsx") {
		return "", fmt.Errorf("invalid file type: only .xlsx files are allowed")
	}

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return "", errors.New("organization id is required")
	}

	if vendorId != 0 {
		if err := utils.ValidateResourceId[Vendor](ctx, organizationId, vendorId); err != nil {
			return "", errors.New("vendor not found")
		}
	}

	f, err := excelize.OpenReader(file)
	if err != nil {
		return "", fmt.Errorf("unable to open Excel file: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return "", fmt.Errorf("unable to read sheet: %v", err)
	}
	if len(rows) < 2 {
		return "", errors.New("sheet has no data rows")
	}

	if err := utils.OrganizationLock(ctx, organizationId, "lock", "catalogItem.go", "ImportCatalogFromXlsx"); err != nil {
		return "", err
	}

	db := config.GetDB()
	tx := db.Begin()

	created := 0
	duplicateRows := make([]string, 0)

	for idx, row := range rows[1:] {
		if len(row) < 2 {
			continue
		}
		itemCode := strings.TrimSpace(row[0])
		productName := strings.TrimSpace(row[1])
		if itemCode == "" || productName == "" {
			continue
		}

		price := decimal.Zero
		if len(row) > 2 {
			price, err = utils.ParseFormattedDecimal(row[2])
			if err != nil {
				tx.Rollback()
				return "", fmt.Errorf("could not parse unit price in row %d: %v", idx+2, err)
			}
		}
		unitOfMeasure := ""
		if len(row) > 3 {
			unitOfMeasure = strings.TrimSpace(row[3])
		}

		var existing CatalogItem
		err = tx.WithContext(ctx).Where("organization_id = ? AND item_code = ?", organizationId, itemCode).First(&existing).Error
		if err == nil {
			duplicateRows = append(duplicateRows, fmt.Sprintf("Row %d: duplicate item code %s", idx+2, itemCode))
			continue
		} else if err != gorm.ErrRecordNotFound {
			tx.Rollback()
			return "", fmt.Errorf("error checking for duplicates in row %d: %v", idx+2, err)
		}

		item := CatalogItem{
			OrganizationId: organizationId,
			VendorId:       vendorId,
			ItemCode:       itemCode,
			ProductName:    productName,
			UnitOfMeasure:  unitOfMeasure,
			CurrentPrice:   price,
			IsActive:       utils.NewTrue(),
		}
		if err := tx.WithContext(ctx).Create(&item).Error; err != nil {
			tx.Rollback()
			return "", fmt.Errorf("could not create catalog item in row %d: %v", idx+2, err)
		}
		created++
	}

	if err := tx.Commit().Error; err != nil {
		return "", err
	}

	if err := utils.RemoveRedisList[CatalogItem](organizationId); err != nil {
		return "", err
	}

	summary := fmt.Sprintf("imported %d catalog items", created)
	if len(duplicateRows) > 0 {
		summary += fmt.Sprintf(", skipped %d duplicates: %s", len(duplicateRows), strings.Join(duplicateRows, "; "))
	}
	return summary, nil
}
