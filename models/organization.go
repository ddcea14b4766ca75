package models

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/kitchenops_backend/config"
	"bitbucket.org/mmdatafocus/kitchenops_backend/utils"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

type Organization struct {
	ID           uuid.UUID `gorm:"primary_key" json:"id"`
	LogoUrl      string    `json:"logo_url"`
	Name         string    `gorm:"index;size:100;not null" json:"name" binding:"required"`
	ContactName  string    `gorm:"size:100" json:"contact_name"`
	Email        string    `gorm:"size:255" json:"email"`
	Phone        string    `gorm:"size:20" json:"phone"`
	Address      string    `gorm:"type:text" json:"address"`
	Country      string    `gorm:"size:100" json:"country"`
	City         string    `gorm:"size:100" json:"city"`
	Timezone     string    `gorm:"size:50" json:"timezone"`
	CurrencyCode string    `gorm:"size:10;default:'USD'" json:"currency_code"`
	IsActive     *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewOrganization struct {
	Name         string `json:"name" binding:"required"`
	ContactName  string `json:"contact_name"`
	Email        string `json:"email" binding:"required"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`
	Country      string `json:"country"`
	City         string `json:"city"`
	Timezone     string `json:"timezone"`
	CurrencyCode string `json:"currency_code"`
}

func CreateOrganization(ctx context.Context, input *NewOrganization) (*Organization, error) {

	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return nil, errors.New("invalid email address")
	}

	currencyCode := input.CurrencyCode
	if currencyCode == "" {
		currencyCode = "USD"
	}

	organization := Organization{
		ID:           uuid.New(),
		Name:         input.Name,
		ContactName:  input.ContactName,
		Email:        strings.ToLower(input.Email),
		Phone:        input.Phone,
		Address:      input.Address,
		Country:      input.Country,
		City:         input.City,
		Timezone:     input.Timezone,
		CurrencyCode: currencyCode,
		IsActive:     utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&organization).Error; err != nil {
		return nil, err
	}
	return &organization, nil
}

func GetOrganizationById(ctx context.Context, organizationId string) (*Organization, error) {

	var organization Organization

	// cached per id, invalidated on update
	exists, err := config.GetRedisObject("Organization:"+organizationId, &organization)
	if err != nil {
		return nil, err
	}
	if exists {
		return &organization, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Where("id = ?", organizationId).First(&organization).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	if err := config.SetRedisObject("Organization:"+organizationId, &organization, utils.GetCacheLifespan()); err != nil {
		return nil, err
	}
	return &organization, nil
}

func GetOrganization(ctx context.Context) (*Organization, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	return GetOrganizationById(ctx, organizationId)
}

// UpdateOrganizationLogo resizes the uploaded image to a fixed-width logo,
// pushes it to cloud storage and saves the public URL.
func UpdateOrganizationLogo(ctx context.Context, file io.Reader) (*Organization, error) {

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	img, err := imaging.Decode(file)
	if err != nil {
		return nil, errors.New("uploaded file is not a valid image")
	}
	logo := imaging.Resize(img, 400, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, logo, imaging.PNG); err != nil {
		return nil, err
	}

	objectName := fmt.Sprintf("logos/%s/%s.png", organizationId, utils.GenerateUniqueFilename())
	if err := utils.UploadFileToGCS(ctx, objectName, &buf); err != nil {
		return nil, err
	}

	var organization Organization
	db := config.GetDB()
	if err := db.WithContext(ctx).Where("id = ?", organizationId).First(&organization).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	organization.LogoUrl = utils.GetCloudURL(objectName)
	if err := db.WithContext(ctx).Model(&organization).UpdateColumn("LogoUrl", organization.LogoUrl).Error; err != nil {
		return nil, err
	}

	if err := config.RemoveRedisKey("Organization:" + organizationId); err != nil {
		return nil, err
	}
	return &organization, nil
}
