// catalog-import bulk-loads a vendor catalog from an xlsx file.
// Expects Item Code / Product Name / Unit Price / Unit columns with a header row.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... REDIS_ADDRESS=... go run ./cmd/catalog-import \
//	  -org <organization-uuid> -vendor <vendor-id> -file catalog.xlsx
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/kitchenops_backend/config"
	"bitbucket.org/mmdatafocus/kitchenops_backend/models"
	"bitbucket.org/mmdatafocus/kitchenops_backend/utils"
)

func main() {
	orgId := flag.String("org", "", "organization id (uuid)")
	vendorId := flag.Int("vendor", 0, "vendor id")
	filePath := flag.String("file", "", "path to the xlsx file")
	flag.Parse()

	if *orgId == "" || *filePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	file, err := os.Open(*filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open %s: %v\n", *filePath, err)
		os.Exit(1)
	}
	defer file.Close()

	ctx := context.Background()
	ctx = utils.SetOrganizationIdInContext(ctx, *orgId)
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "CatalogImport")

	summary, err := models.ImportCatalogFromXlsx(ctx, *vendorId, *filePath, file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "import failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(summary)
}
