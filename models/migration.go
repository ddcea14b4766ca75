package models

import (
	"log"

	"bitbucket.org/mmdatafocus/kitchenops_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Organization{}, &User{},
		&Vendor{}, &CatalogItem{}, &PendingItem{},
		&ImportBatch{}, &ImportLineItem{}, &PriceHistory{},
		&History{},
		&OutboxEventRecord{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
