package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"bitbucket.org/mmdatafocus/kitchenops_backend/config"
	"bitbucket.org/mmdatafocus/kitchenops_backend/importer"
	"bitbucket.org/mmdatafocus/kitchenops_backend/models"
	"bitbucket.org/mmdatafocus/kitchenops_backend/utils"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("kitchenops-backend")

// newImportService wires the review-session service against the real
// collaborators: gorm-backed gateway, redis session store, redis locks.
func newImportService() *importer.Service {
	gateway := models.ImporterGateway{}
	return &importer.Service{
		Catalog:  gateway,
		Writer:   gateway,
		Stager:   gateway,
		Adder:    gateway,
		Sessions: importer.NewRedisSessionStore(24 * time.Hour),
		Logger:   config.GetLogger(),
		Lock: func(ctx context.Context, key string, ttl time.Duration) (func(), error) {
			locker := config.GetRedisLock()
			if locker == nil {
				return func() {}, nil
			}
			lock, err := locker.Obtain(ctx, key, ttl, nil)
			if err != nil {
				return nil, err
			}
			return func() { _ = lock.Release(ctx) }, nil
		},
	}
}

func archiveSourceFile(organizationId string, sessionId string, filename string, raw []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	objectName := fmt.Sprintf("invoices/%s/%s/%s", organizationId, sessionId, filename)
	if err := utils.UploadFileToGCS(ctx, objectName, bytes.NewReader(raw)); err != nil {
		config.LogError(config.GetLogger(), "importHandlers.go", "archiveSourceFile", "Failed to archive source file", objectName, err)
	}
}

func requireSessionUser(c *gin.Context) (string, int, bool) {
	ctx := c.Request.Context()
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", 0, false
	}
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", 0, false
	}
	return organizationId, userId, true
}

// importErrorStatus maps domain errors onto HTTP statuses: bad input is 400,
// violated preconditions are 409, a missing session is 404.
func importErrorStatus(err error) int {
	var unresolved *importer.UnresolvedRowsError
	switch {
	case errors.Is(err, importer.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, importer.ErrSessionCommitted),
		errors.Is(err, models.ErrDuplicateInvoice),
		errors.As(err, &unresolved):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func abortImportError(c *gin.Context, err error) {
	c.JSON(importErrorStatus(err), gin.H{"error": err.Error()})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}
		info, err := models.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

func logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := models.Logout(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": ok})
	}
}

func createImportSessionHandler(svc *importer.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		organizationId, userId, ok := requireSessionUser(c)
		if !ok {
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
		raw, err := io.ReadAll(file)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		in := importer.CreateSessionInput{
			OrganizationId: organizationId,
			UserId:         userId,
			Filename:       fileHeader.Filename,
			File:           bytes.NewReader(raw),
			SheetName:      c.PostForm("sheet_name"),
		}
		if v := c.PostForm("vendor_id"); v != "" {
			vendorId, convErr := parseIntField(v)
			if convErr != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "vendor_id must be an integer"})
				return
			}
			if err := utils.ValidateResourceId[models.Vendor](c.Request.Context(), organizationId, vendorId); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "vendor not found"})
				return
			}
			in.VendorId = vendorId
		}
		if v := c.PostForm("invoice_date"); v != "" {
			date, convErr := time.Parse("2006-01-02", v)
			if convErr != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invoice_date must be YYYY-MM-DD"})
				return
			}
			in.InvoiceDate = date
		}

		session, err := svc.CreateSession(c.Request.Context(), in)
		if err != nil {
			abortImportError(c, err)
			return
		}

		// Archive the source spreadsheet so a committed batch can always be
		// traced back to the file it came from. Best effort: an archive
		// failure must not block the review.
		go archiveSourceFile(organizationId, session.ID, fileHeader.Filename, raw)

		c.JSON(http.StatusCreated, session)
	}
}

// loadOwnedSession fetches the session and enforces tenant ownership before
// any handler acts on it.
func loadOwnedSession(c *gin.Context, svc *importer.Service) (*importer.ReviewSession, bool) {
	organizationId, _, ok := requireSessionUser(c)
	if !ok {
		return nil, false
	}
	session, err := svc.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortImportError(c, err)
		return nil, false
	}
	if session.OrganizationId != organizationId {
		c.JSON(http.StatusNotFound, gin.H{"error": importer.ErrSessionNotFound.Error()})
		return nil, false
	}
	return session, true
}

func getImportSessionHandler(svc *importer.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := loadOwnedSession(c, svc)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, sessionView(session))
	}
}

// sessionView is the reviewer-facing projection: the session plus its derived
// working-set lists.
func sessionView(s *importer.ReviewSession) gin.H {
	return gin.H{
		"session":          s,
		"approved_changes": s.ApprovedChanges(),
		"line_items":       s.LineItems(),
		"unresolved_codes": s.UnresolvedCodes(),
		"commit_ready":     s.CommitReady(),
	}
}

func updateMappingHandler(svc *importer.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := loadOwnedSession(c, svc)
		if !ok {
			return
		}
		var mapping importer.ColumnMapping
		if err := c.ShouldBindJSON(&mapping); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}
		updated, err := svc.Remap(c.Request.Context(), session.ID, mapping)
		if err != nil {
			abortImportError(c, err)
			return
		}
		c.JSON(http.StatusOK, sessionView(updated))
	}
}

type dispositionRequest struct {
	Action   string `json:"action" binding:"required"`
	ItemCode string `json:"item_code" binding:"required"`
}

func dispositionHandler(svc *importer.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := loadOwnedSession(c, svc)
		if !ok {
			return
		}
		var req dispositionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}

		ctx := c.Request.Context()
		var updated *importer.ReviewSession
		var err error
		switch req.Action {
		case "approve":
			updated, err = svc.Approve(ctx, session.ID, req.ItemCode)
		case "reject":
			updated, err = svc.Reject(ctx, session.ID, req.ItemCode)
		case "exclude":
			updated, err = svc.Exclude(ctx, session.ID, req.ItemCode)
		case "restore":
			updated, err = svc.Restore(ctx, session.ID, req.ItemCode)
		case "skip":
			updated, err = svc.Skip(ctx, session.ID, req.ItemCode)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action: " + req.Action})
			return
		}
		if err != nil {
			abortImportError(c, err)
			return
		}
		c.JSON(http.StatusOK, sessionView(updated))
	}
}

type discrepancyRequest struct {
	Action   string `json:"action" binding:"required"`
	ItemCode string `json:"item_code"`
	Type     string `json:"type"`
	Notes    string `json:"notes"`
}

func discrepancyHandler(svc *importer.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := loadOwnedSession(c, svc)
		if !ok {
			return
		}
		var req discrepancyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}

		ctx := c.Request.Context()
		switch req.Action {
		case "mark":
			typ := importer.DiscrepancyType(req.Type)
			if !typ.Valid() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown discrepancy type: " + req.Type})
				return
			}
			updated, err := svc.MarkDiscrepancy(ctx, session.ID, req.ItemCode, typ, req.Notes)
			if err != nil {
				abortImportError(c, err)
				return
			}
			c.JSON(http.StatusOK, sessionView(updated))
		case "clear":
			updated, err := svc.ClearDiscrepancy(ctx, session.ID, req.ItemCode)
			if err != nil {
				abortImportError(c, err)
				return
			}
			c.JSON(http.StatusOK, sessionView(updated))
		case "bulk_short":
			marked, err := svc.BulkMarkShort(ctx, session.ID)
			if err != nil {
				abortImportError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"marked": marked})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action: " + req.Action})
		}
	}
}

type quickAddRequest struct {
	ItemCode    string `json:"item_code" binding:"required"`
	ProductName string `json:"product_name" binding:"required"`
	UnitPrice   string `json:"unit_price" binding:"required"`
	Unit        string `json:"unit"`
}

func quickAddHandler(svc *importer.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := loadOwnedSession(c, svc)
		if !ok {
			return
		}
		var req quickAddRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}
		price, err := utils.ParseFormattedDecimal(req.UnitPrice)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unit_price is not a valid amount"})
			return
		}
		updated, err := svc.QuickAdd(c.Request.Context(), session.ID, req.ItemCode, req.ProductName, price, req.Unit)
		if err != nil {
			abortImportError(c, err)
			return
		}
		c.JSON(http.StatusOK, sessionView(updated))
	}
}

func refreshSessionHandler(svc *importer.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := loadOwnedSession(c, svc)
		if !ok {
			return
		}
		updated, err := svc.Refresh(c.Request.Context(), session.ID)
		if err != nil {
			abortImportError(c, err)
			return
		}
		c.JSON(http.StatusOK, sessionView(updated))
	}
}

func commitSessionHandler(svc *importer.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := loadOwnedSession(c, svc)
		if !ok {
			return
		}
		ctx, span := tracer.Start(c.Request.Context(), "import.commit")
		defer span.End()
		span.SetAttributes(
			attribute.String("session_id", session.ID),
			attribute.String("organization_id", session.OrganizationId),
		)
		result, err := svc.Commit(ctx, session.ID)
		if err != nil {
			abortImportError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
