package models

import "errors"

type UserRole string

const (
	UserRoleAdmin  UserRole = "A"
	UserRoleOwner  UserRole = "O"
	UserRoleCustom UserRole = "C"
)

type PendingItemStatus string

const (
	PendingItemStatusPending   PendingItemStatus = "Pending"
	PendingItemStatusResolved  PendingItemStatus = "Resolved"
	PendingItemStatusDismissed PendingItemStatus = "Dismissed"
)

func (s PendingItemStatus) Valid() bool {
	switch s {
	case PendingItemStatusPending, PendingItemStatusResolved, PendingItemStatusDismissed:
		return true
	}
	return false
}

type NotificationAction string

const (
	NotificationActionCreate NotificationAction = "C"
	NotificationActionUpdate NotificationAction = "U"
	NotificationActionDelete NotificationAction = "D"
)

// Reference types carried on outbox records and notification events.
const (
	ReferenceTypeImportBatch  = "ImportBatch"
	ReferenceTypePriceChange  = "PriceChange"
	ReferenceTypePendingItem  = "PendingItem"
	ReferenceTypeCatalogItem  = "CatalogItem"
	ReferenceTypeVendor       = "Vendor"
	ReferenceTypeOrganization = "Organization"
)

var ErrInvalidPendingStatus = errors.New("invalid pending item status")
