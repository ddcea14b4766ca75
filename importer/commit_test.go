package importer

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDeriveInvoiceNumber(t *testing.T) {
	now := time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC)
	date := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		filename string
		want     string
	}{
		{"invoice-4412.csv", "invoice-4412"},
		{"uploads/march/invoice-4412.xlsx", "invoice-4412"},
		{"no-extension", "no-extension"},
	}
	for _, tc := range cases {
		if got := DeriveInvoiceNumber(tc.filename, 7, date, now); got != tc.want {
			t.Fatalf("DeriveInvoiceNumber(%q) = %q, want %q", tc.filename, got, tc.want)
		}
	}

	// no usable filename: synthesized from vendor + date + timestamp
	got := DeriveInvoiceNumber("", 7, date, now)
	if !strings.HasPrefix(got, "7-20260314-") {
		t.Fatalf("synthesized invoice number has wrong shape: %q", got)
	}
}

func TestBuildCommit_BlocksOnUnresolvedRows(t *testing.T) {
	s := newReviewFixture(t)
	if err := s.Approve("A1"); err != nil {
		t.Fatalf("Approve error: %v", err)
	}

	_, _, _, err := BuildCommit(s, time.Now())
	var unresolved *UnresolvedRowsError
	if !errors.As(err, &unresolved) {
		t.Fatalf("expected UnresolvedRowsError, got %v", err)
	}
	if len(unresolved.ItemCodes) != 2 {
		t.Fatalf("expected X100 and NEW1 unresolved, got %v", unresolved.ItemCodes)
	}
}

func TestBuildCommit_AssemblesBatch(t *testing.T) {
	s := newReviewFixture(t)
	if err := s.Approve("A1"); err != nil {
		t.Fatalf("Approve error: %v", err)
	}
	if err := s.MarkDiscrepancy("X100", DiscrepancyShort, ""); err != nil {
		t.Fatalf("MarkDiscrepancy error: %v", err)
	}
	if err := s.Skip("NEW1"); err != nil {
		t.Fatalf("Skip error: %v", err)
	}

	now := time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC)
	batch, approved, pending, err := BuildCommit(s, now)
	if err != nil {
		t.Fatalf("BuildCommit error: %v", err)
	}
	if batch.InvoiceNumber != "invoice-4412" {
		t.Fatalf("unexpected invoice number %q", batch.InvoiceNumber)
	}
	if batch.OrganizationId != "org-1" || batch.VendorId != 7 || batch.SessionId != "sess-1" {
		t.Fatalf("batch missing identity fields: %+v", batch)
	}
	// all three rows are on the invoice (nothing was excluded)
	if len(batch.LineItems) != 3 {
		t.Fatalf("expected 3 line items, got %d", len(batch.LineItems))
	}
	if len(approved) != 1 || approved[0].ItemCode != "A1" {
		t.Fatalf("expected only A1 approved, got %+v", approved)
	}
	if len(pending) != 1 || pending[0].ItemCode != "NEW1" {
		t.Fatalf("expected NEW1 staged, got %+v", pending)
	}
}

func TestBuildCommit_ExcludedRowsLeaveTheBatch(t *testing.T) {
	s := newReviewFixture(t)
	if err := s.Approve("A1"); err != nil {
		t.Fatalf("Approve error: %v", err)
	}
	if err := s.MarkDiscrepancy("X100", DiscrepancyShort, ""); err != nil {
		t.Fatalf("MarkDiscrepancy error: %v", err)
	}
	if err := s.Exclude("NEW1"); err != nil {
		t.Fatalf("Exclude error: %v", err)
	}

	batch, _, pending, err := BuildCommit(s, time.Now())
	if err != nil {
		t.Fatalf("BuildCommit error: %v", err)
	}
	if len(batch.LineItems) != 2 {
		t.Fatalf("excluded row must leave the batch, got %d lines", len(batch.LineItems))
	}
	for _, li := range batch.LineItems {
		if li.ItemCode == "NEW1" {
			t.Fatalf("excluded row present in line items")
		}
	}
	if len(pending) != 0 {
		t.Fatalf("excluded row must not stage pending, got %+v", pending)
	}
}

func TestBuildCommit_RejectsCommittedSession(t *testing.T) {
	s := newReviewFixture(t)
	s.Committed = true
	if _, _, _, err := BuildCommit(s, time.Now()); !errors.Is(err, ErrSessionCommitted) {
		t.Fatalf("expected ErrSessionCommitted, got %v", err)
	}
}

func TestBuildCommit_LineItemValues(t *testing.T) {
	s := newReviewFixture(t)
	if err := s.Approve("A1"); err != nil {
		t.Fatalf("Approve error: %v", err)
	}
	if err := s.MarkDiscrepancy("X100", DiscrepancyShort, ""); err != nil {
		t.Fatalf("MarkDiscrepancy error: %v", err)
	}
	if err := s.Skip("NEW1"); err != nil {
		t.Fatalf("Skip error: %v", err)
	}

	batch, _, _, err := BuildCommit(s, time.Now())
	if err != nil {
		t.Fatalf("BuildCommit error: %v", err)
	}
	first := batch.LineItems[0]
	if first.ItemCode != "A1" || !first.UnitPrice.Equal(decimal.NewFromInt(12)) || !first.Quantity.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("unexpected first line: %+v", first)
	}
	if first.IsNewItem {
		t.Fatalf("A1 is catalog-matched, not new")
	}
	last := batch.LineItems[2]
	if last.ItemCode != "NEW1" || !last.IsNewItem {
		t.Fatalf("unexpected last line: %+v", last)
	}
}
