package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/kitchenops_backend/config"
	"bitbucket.org/mmdatafocus/kitchenops_backend/utils"
)

type Vendor struct {
	ID             int       `gorm:"primary_key" json:"id"`
	OrganizationId string    `gorm:"index;not null" json:"organization_id" binding:"required"`
	Name           string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Email          string    `gorm:"size:100" json:"email"`
	Phone          string    `gorm:"size:20" json:"phone"`
	ContactName    string    `gorm:"size:100" json:"contact_name"`
	Notes          string    `gorm:"type:text" json:"notes"`
	IsActive       *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewVendor struct {
	Name        string `json:"name" binding:"required"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	ContactName string `json:"contact_name"`
	Notes       string `json:"notes"`
}

func (input *NewVendor) validate(ctx context.Context, organizationId string, id int) error {
	// validate unique name
	if err := utils.ValidateUnique[Vendor](ctx, organizationId, "name", input.Name, id); err != nil {
		return err
	}
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return errors.New("invalid email address")
	}
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return err
		}
	}
	return nil
}

func CreateVendor(ctx context.Context, input *NewVendor) (*Vendor, error) {

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	if err := input.validate(ctx, organizationId, 0); err != nil {
		return nil, err
	}

	vendor := Vendor{
		OrganizationId: organizationId,
		Name:           input.Name,
		Email:          input.Email,
		Phone:          input.Phone,
		ContactName:    input.ContactName,
		Notes:          input.Notes,
		IsActive:       utils.NewTrue(),
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&vendor).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := saveHistoryFor(tx.WithContext(ctx), "CREATE", vendor.ID, ReferenceTypeVendor, nil, vendor, "vendor created"); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}

func UpdateVendor(ctx context.Context, id int, input *NewVendor) (*Vendor, error) {

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	oldVendor, err := utils.FetchModel[Vendor](ctx, organizationId, id)
	if err != nil {
		return nil, err
	}

	if err := input.validate(ctx, organizationId, id); err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.Begin()
	err = tx.WithContext(ctx).Model(oldVendor).
		Updates(map[string]interface{}{
			"Name":        input.Name,
			"Email":       input.Email,
			"Phone":       input.Phone,
			"ContactName": input.ContactName,
			"Notes":       input.Notes,
		}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	if err := utils.RemoveRedisItem[Vendor](id); err != nil {
		return nil, err
	}
	return oldVendor, nil
}

func DeleteVendor(ctx context.Context, id int) (*Vendor, error) {

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	result, err := utils.FetchModel[Vendor](ctx, organizationId, id)
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	count, err := utils.ResourceCountWhere[CatalogItem](ctx, organizationId, "vendor_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("catalog item associated with vendor exists")
	}

	count, err = utils.ResourceCountWhere[ImportBatch](ctx, organizationId, "vendor_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("import batch associated with vendor exists")
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Delete(&result).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := saveHistoryFor(tx.WithContext(ctx), "DELETE", id, ReferenceTypeVendor, result, nil, "vendor deleted"); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	if err := utils.RemoveRedisItem[Vendor](id); err != nil {
		return nil, err
	}
	return result, nil
}

func GetVendor(ctx context.Context, id int) (*Vendor, error) {
	return GetResource[Vendor](ctx, id)
}

func GetVendors(ctx context.Context, name *string) ([]*Vendor, error) {
	db := config.GetDB()
	var results []*Vendor

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	dbCtx := db.WithContext(ctx).Where("organization_id = ?", organizationId)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	if err := dbCtx.Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
