package workflow

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/kitchenops_backend/config"
	"bitbucket.org/mmdatafocus/kitchenops_backend/models"
)

// commitSummary mirrors the outbox payload written by the import commit.
type commitSummary struct {
	BatchId          int       `json:"batch_id"`
	VendorId         int       `json:"vendor_id"`
	InvoiceNumber    string    `json:"invoice_number"`
	InvoiceDate      time.Time `json:"invoice_date"`
	LineItemCount    int       `json:"line_item_count"`
	PriceChangeCount int       `json:"price_change_count"`
}

// DateBucket maps an event time to the relative label used by notification
// templates. Buckets are evaluated against the receiver's local day.
func DateBucket(eventTime, now time.Time) string {
	y1, m1, d1 := eventTime.Date()
	y2, m2, d2 := now.Date()
	if y1 == y2 && m1 == m2 && d1 == d2 {
		return "today"
	}
	yesterday := now.AddDate(0, 0, -1)
	y3, m3, d3 := yesterday.Date()
	if y1 == y3 && m1 == m3 && d1 == d3 {
		return "yesterday"
	}
	yearNow, weekNow := now.ISOWeek()
	yearEvt, weekEvt := eventTime.ISOWeek()
	if yearNow == yearEvt && weekNow == weekEvt {
		return "this_week"
	}
	if y1 == y2 && m1 == m2 {
		return "this_month"
	}
	return "earlier"
}

// BuildTemplateContext flattens an outbox record into the string map merged
// into notification templates. Unknown payloads still produce the common
// fields so the consumer never sees a nil context.
func BuildTemplateContext(record models.OutboxEventRecord, vendorName string, now time.Time) map[string]string {
	tc := map[string]string{
		"reference_type": record.ReferenceType,
		"action":         string(record.Action),
		"date_bucket":    DateBucket(record.EventTime, now),
		"event_date":     record.EventTime.Format("2006-01-02"),
	}
	if vendorName != "" {
		tc["vendor_name"] = vendorName
	}

	if record.ReferenceType != models.ReferenceTypeImportBatch || len(record.Payload) == 0 {
		return tc
	}

	var summary commitSummary
	if err := json.Unmarshal(record.Payload, &summary); err != nil {
		return tc
	}
	tc["invoice_number"] = summary.InvoiceNumber
	tc["invoice_date"] = summary.InvoiceDate.Format("2006-01-02")
	tc["line_item_count"] = strconv.Itoa(summary.LineItemCount)
	tc["price_change_count"] = strconv.Itoa(summary.PriceChangeCount)
	return tc
}

// vendorNameForRecord resolves the vendor name for template context,
// best-effort. A lookup failure just leaves the name out.
func vendorNameForRecord(ctx context.Context, record models.OutboxEventRecord) string {
	if record.ReferenceType != models.ReferenceTypeImportBatch || len(record.Payload) == 0 {
		return ""
	}
	var summary commitSummary
	if err := json.Unmarshal(record.Payload, &summary); err != nil || summary.VendorId == 0 {
		return ""
	}

	db := config.GetDB()
	var vendor models.Vendor
	err := db.WithContext(ctx).
		Where("organization_id = ? AND id = ?", record.OrganizationId, summary.VendorId).
		First(&vendor).Error
	if err != nil {
		return ""
	}
	return vendor.Name
}
