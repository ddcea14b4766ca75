package models

import (
	"context"

	"bitbucket.org/mmdatafocus/kitchenops_backend/importer"
	"bitbucket.org/mmdatafocus/kitchenops_backend/utils"
)

// ImporterGateway adapts the models package to the importer package's
// collaborator interfaces. One value serves as catalog source, catalog
// writer, audit-trail writer and pending stager.
type ImporterGateway struct{}

var _ importer.CatalogSource = ImporterGateway{}
var _ importer.CatalogWriter = ImporterGateway{}
var _ importer.AuditTrailWriter = ImporterGateway{}
var _ importer.PendingStager = ImporterGateway{}

func (ImporterGateway) FetchCatalog(ctx context.Context, organizationId string) ([]importer.CatalogItem, error) {
	return FetchCatalogSnapshot(ctx, organizationId)
}

func (ImporterGateway) CreateCatalogItem(ctx context.Context, organizationId string, vendorId int, item importer.CatalogItem) (importer.CatalogItem, error) {
	// quick-add runs with the session's organization in context already;
	// guard against a mismatch anyway
	ctxOrg, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || ctxOrg != organizationId {
		ctx = utils.SetOrganizationIdInContext(ctx, organizationId)
	}

	created, err := CreateCatalogItem(ctx, &NewCatalogItem{
		VendorId:      vendorId,
		ItemCode:      item.ItemCode,
		ProductName:   item.ProductName,
		UnitOfMeasure: item.UnitOfMeasure,
		CurrentPrice:  item.CurrentPrice,
	})
	if err != nil {
		return importer.CatalogItem{}, err
	}
	return importer.CatalogItem{
		ID:            created.ID,
		ItemCode:      created.ItemCode,
		ProductName:   created.ProductName,
		UnitOfMeasure: created.UnitOfMeasure,
		CurrentPrice:  created.CurrentPrice,
	}, nil
}

func (ImporterGateway) CommitImport(ctx context.Context, batch importer.ImportBatch, approvedChanges []importer.ApprovedChange) (importer.CommitReceipt, error) {
	return CommitImport(ctx, batch, approvedChanges)
}

func (ImporterGateway) UpsertPending(ctx context.Context, rows []importer.PendingRow) error {
	return UpsertPendingItems(ctx, rows)
}
