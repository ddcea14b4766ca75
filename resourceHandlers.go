package main

import (
	"errors"
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/kitchenops_backend/models"
	"bitbucket.org/mmdatafocus/kitchenops_backend/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func parseIntField(value string) (int, error) {
	return strconv.Atoi(value)
}

func pathId(c *gin.Context) (int, bool) {
	id, err := parseIntField(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a positive integer"})
		return 0, false
	}
	return id, true
}

func abortModelError(c *gin.Context, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func createVendorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewVendor
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}
		vendor, err := models.CreateVendor(c.Request.Context(), &input)
		if err != nil {
			abortModelError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": vendor})
	}
}

func updateVendorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewVendor
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}
		vendor, err := models.UpdateVendor(c.Request.Context(), id, &input)
		if err != nil {
			abortModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": vendor})
	}
}

func deleteVendorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		vendor, err := models.DeleteVendor(c.Request.Context(), id)
		if err != nil {
			abortModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": vendor})
	}
}

func getVendorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		vendor, err := models.GetVendor(c.Request.Context(), id)
		if err != nil {
			abortModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": vendor})
	}
}

func listVendorsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var name *string
		if v := c.Query("name"); v != "" {
			name = &v
		}
		vendors, err := models.GetVendors(c.Request.Context(), name)
		if err != nil {
			abortModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": vendors})
	}
}

func createCatalogItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewCatalogItem
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}
		item, err := models.CreateCatalogItem(c.Request.Context(), &input)
		if err != nil {
			abortModelError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": item})
	}
}

func updateCatalogItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewCatalogItem
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}
		item, err := models.UpdateCatalogItem(c.Request.Context(), id, &input)
		if err != nil {
			abortModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": item})
	}
}

func getCatalogItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		item, err := models.GetCatalogItem(c.Request.Context(), id)
		if err != nil {
			abortModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": item})
	}
}

func listCatalogItemsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var vendorId *int
		if v := c.Query("vendor_id"); v != "" {
			id, err := parseIntField(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "vendor_id must be an integer"})
				return
			}
			vendorId = &id
		}
		var itemCode *string
		if v := c.Query("item_code"); v != "" {
			itemCode = &v
		}
		items, err := models.GetCatalogItems(c.Request.Context(), vendorId, itemCode)
		if err != nil {
			abortModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": items})
	}
}

// importCatalogHandler bulk-loads a vendor's catalog from an uploaded xlsx.
// Duplicate item codes are skipped and reported in the summary.
func importCatalogHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		vendorId, err := parseIntField(c.PostForm("vendor_id"))
		if err != nil || vendorId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "vendor_id must be a positive integer"})
			return
		}
		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		defer file.Close()

		summary, err := models.ImportCatalogFromXlsx(c.Request.Context(), vendorId, fileHeader.Filename, file)
		if err != nil {
			abortModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": summary})
	}
}

func getPriceHistoriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		histories, err := models.GetPriceHistories(c.Request.Context(), id)
		if err != nil {
			abortModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": histories})
	}
}

func listPendingItemsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var vendorId *int
		if v := c.Query("vendor_id"); v != "" {
			id, err := parseIntField(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "vendor_id must be an integer"})
				return
			}
			vendorId = &id
		}
		var status *models.PendingItemStatus
		if v := c.Query("status"); v != "" {
			s := models.PendingItemStatus(v)
			if !s.Valid() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status: " + v})
				return
			}
			status = &s
		}
		items, err := models.GetPendingItems(c.Request.Context(), vendorId, status)
		if err != nil {
			abortModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": items})
	}
}

type resolvePendingRequest struct {
	Status models.PendingItemStatus `json:"status" binding:"required"`
}

func resolvePendingItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var req resolvePendingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}
		if !req.Status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
			return
		}
		item, err := models.ResolvePendingItem(c.Request.Context(), id, req.Status)
		if err != nil {
			abortModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": item})
	}
}

func getImportBatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		batch, err := models.GetImportBatch(c.Request.Context(), id)
		if err != nil {
			abortModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": batch})
	}
}

func listImportBatchesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var vendorId *int
		if v := c.Query("vendor_id"); v != "" {
			id, err := parseIntField(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "vendor_id must be an integer"})
				return
			}
			vendorId = &id
		}
		batches, err := models.GetImportBatches(c.Request.Context(), vendorId)
		if err != nil {
			abortModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": batches})
	}
}

func listHistoriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var referenceId *int
		if v := c.Query("reference_id"); v != "" {
			id, err := parseIntField(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "reference_id must be an integer"})
				return
			}
			referenceId = &id
		}
		var referenceType *string
		if v := c.Query("reference_type"); v != "" {
			referenceType = &v
		}
		var userId *int
		if v := c.Query("user_id"); v != "" {
			id, err := parseIntField(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "user_id must be an integer"})
				return
			}
			userId = &id
		}
		histories, err := models.GetHistories(c.Request.Context(), referenceId, referenceType, userId)
		if err != nil {
			abortModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": histories})
	}
}

func createUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isAdmin, ok := utils.GetIsAdminFromContext(c.Request.Context()); !ok || !isAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			return
		}
		var input models.NewUser
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}
		user, err := models.CreateUser(c.Request.Context(), &input)
		if err != nil {
			abortModelError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": user})
	}
}

func listUsersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := models.GetAllUsers(c.Request.Context())
		if err != nil {
			abortModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": users})
	}
}

func getOrganizationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		org, err := models.GetOrganization(c.Request.Context())
		if err != nil {
			abortModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": org})
	}
}

// updateOrganizationLogoHandler accepts a multipart image, resizes it and
// stores it in GCS before updating the organization row.
func updateOrganizationLogoHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		defer file.Close()

		org, err := models.UpdateOrganizationLogo(c.Request.Context(), file)
		if err != nil {
			abortModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": org})
	}
}
