// seed-admin creates or updates the admin console user (username: kitchenAdmin).
// Admin users have role 'A'; the backend returns role "Admin" for login.
//
// When the database holds no organization yet, one is bootstrapped from
// SEED_ORGANIZATION_NAME / SEED_ORGANIZATION_EMAIL before the user is seeded.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-admin
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/kitchenops_backend/config"
	"bitbucket.org/mmdatafocus/kitchenops_backend/models"
	"bitbucket.org/mmdatafocus/kitchenops_backend/utils"
	"gorm.io/gorm"
)

const (
	adminUsername = "kitchenAdmin"
	adminPassword = "K!tchenAdmin"
	adminName     = "KitchenOps Admin"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	// Model history hooks require organization_id + user info in context.
	var org models.Organization
	err := db.WithContext(ctx).Model(&models.Organization{}).Select("id").First(&org).Error
	if err == gorm.ErrRecordNotFound {
		created, bootErr := bootstrapOrganization(ctx)
		if bootErr != nil {
			fmt.Fprintf(os.Stderr, "no organization found and bootstrap failed: %v\n", bootErr)
			os.Exit(2)
		}
		org = *created
		fmt.Printf("Created organization: %q (%s)\n", org.Name, org.ID.String())
	} else if err != nil {
		fmt.Fprintf(os.Stderr, "failed to lookup organization: %v\n", err)
		os.Exit(1)
	}

	organizationId := org.ID.String()
	ctx = utils.SetOrganizationIdInContext(ctx, organizationId)
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Seed")
	ctx = utils.SetUsernameInContext(ctx, adminUsername)
	ctx = utils.SetIsAdminInContext(ctx, true)
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)

	hashed, err := utils.HashPassword(adminPassword)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}
	hashedStr := string(hashed)

	var existing models.User
	err = db.WithContext(ctx).Model(&models.User{}).Where("username = ?", adminUsername).First(&existing).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		u := models.User{
			Username:       adminUsername,
			Name:           adminName,
			Password:       hashedStr,
			IsActive:       utils.NewTrue(),
			Role:           models.UserRoleAdmin,
			OrganizationId: organizationId,
		}
		if err := db.WithContext(ctx).Create(&u).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created admin user: username=%q (role=Admin)\n", adminUsername)
		return
	}

	// Update existing user: ensure password and admin role
	if err := db.WithContext(ctx).Model(&models.User{}).Where("username = ?", adminUsername).Updates(map[string]any{
		"password":        hashedStr,
		"name":            adminName,
		"is_active":       utils.NewTrue(),
		"organization_id": organizationId,
		"role":            models.UserRoleAdmin,
	}).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to update admin user: %v\n", err)
		os.Exit(1)
	}
	_ = existing.RemoveInstanceRedis()
	fmt.Printf("Updated admin user: username=%q (role=Admin)\n", adminUsername)
}

func bootstrapOrganization(ctx context.Context) (*models.Organization, error) {
	name := strings.TrimSpace(os.Getenv("SEED_ORGANIZATION_NAME"))
	email := strings.TrimSpace(os.Getenv("SEED_ORGANIZATION_EMAIL"))
	if name == "" || email == "" {
		return nil, fmt.Errorf("set SEED_ORGANIZATION_NAME and SEED_ORGANIZATION_EMAIL to bootstrap an organization")
	}
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Seed")
	return models.CreateOrganization(ctx, &models.NewOrganization{
		Name:  name,
		Email: email,
	})
}
