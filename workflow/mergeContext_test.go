package workflow

import (
	"encoding/json"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/kitchenops_backend/models"
)

// NOTE: These tests are intentionally DB-free. They validate the template
// context a notification consumer merges into its message bodies.

func TestDateBucket(t *testing.T) {
	// Wednesday 2026-03-18
	now := time.Date(2026, 3, 18, 15, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		event time.Time
		want  string
	}{
		{"same day", time.Date(2026, 3, 18, 2, 0, 0, 0, time.UTC), "today"},
		{"previous day", time.Date(2026, 3, 17, 23, 0, 0, 0, time.UTC), "yesterday"},
		{"monday of same iso week", time.Date(2026, 3, 16, 8, 0, 0, 0, time.UTC), "this_week"},
		{"earlier in month", time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC), "this_month"},
		{"previous month", time.Date(2026, 2, 27, 8, 0, 0, 0, time.UTC), "earlier"},
		{"previous year", time.Date(2025, 3, 18, 8, 0, 0, 0, time.UTC), "earlier"},
	}
	for _, tc := range cases {
		if got := DateBucket(tc.event, now); got != tc.want {
			t.Fatalf("%s: DateBucket = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestBuildTemplateContext_ImportBatchPayload(t *testing.T) {
	payload, err := json.Marshal(map[string]interface{}{
		"batch_id":           41,
		"vendor_id":          7,
		"invoice_number":     "invoice-4412",
		"invoice_date":       time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		"line_item_count":    3,
		"price_change_count": 1,
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	record := models.OutboxEventRecord{
		OrganizationId: "org-1",
		EventTime:      time.Date(2026, 3, 18, 9, 0, 0, 0, time.UTC),
		ReferenceId:    41,
		ReferenceType:  models.ReferenceTypeImportBatch,
		Action:         models.NotificationActionCreate,
		Payload:        payload,
	}
	now := time.Date(2026, 3, 18, 15, 0, 0, 0, time.UTC)

	tc := BuildTemplateContext(record, "Fresh Farms", now)
	expect := map[string]string{
		"reference_type":     models.ReferenceTypeImportBatch,
		"action":             string(models.NotificationActionCreate),
		"date_bucket":        "today",
		"event_date":         "2026-03-18",
		"vendor_name":        "Fresh Farms",
		"invoice_number":     "invoice-4412",
		"invoice_date":       "2026-03-14",
		"line_item_count":    "3",
		"price_change_count": "1",
	}
	for k, want := range expect {
		if tc[k] != want {
			t.Fatalf("context[%q] = %q, want %q", k, tc[k], want)
		}
	}
}

func TestBuildTemplateContext_UnknownPayloadKeepsCommonFields(t *testing.T) {
	record := models.OutboxEventRecord{
		EventTime:     time.Date(2026, 3, 17, 9, 0, 0, 0, time.UTC),
		ReferenceType: models.ReferenceTypePendingItem,
		Action:        models.NotificationActionUpdate,
		Payload:       []byte(`{"whatever": true}`),
	}
	now := time.Date(2026, 3, 18, 15, 0, 0, 0, time.UTC)

	tc := BuildTemplateContext(record, "", now)
	if tc == nil {
		t.Fatalf("context must never be nil")
	}
	if tc["date_bucket"] != "yesterday" {
		t.Fatalf("expected yesterday bucket, got %q", tc["date_bucket"])
	}
	if _, ok := tc["vendor_name"]; ok {
		t.Fatalf("empty vendor name must be omitted")
	}
	if _, ok := tc["invoice_number"]; ok {
		t.Fatalf("non-batch payload must not surface invoice fields")
	}
}

func TestBuildTemplateContext_MalformedPayload(t *testing.T) {
	record := models.OutboxEventRecord{
		EventTime:     time.Date(2026, 3, 18, 9, 0, 0, 0, time.UTC),
		ReferenceType: models.ReferenceTypeImportBatch,
		Action:        models.NotificationActionCreate,
		Payload:       []byte("not json"),
	}
	tc := BuildTemplateContext(record, "", time.Date(2026, 3, 18, 15, 0, 0, 0, time.UTC))
	if tc["reference_type"] != models.ReferenceTypeImportBatch {
		t.Fatalf("common fields missing for malformed payload")
	}
	if _, ok := tc["invoice_number"]; ok {
		t.Fatalf("malformed payload must not surface invoice fields")
	}
}
