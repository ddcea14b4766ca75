package models

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/kitchenops_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OutboxEventRecord is the transactional outbox row. Domain writes stage a
// record inside their own DB transaction; the dispatcher publishes to Pub/Sub
// after commit.
type OutboxEventRecord struct {
	ID             int                `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	OrganizationId string             `gorm:"size:64;not null;index" json:"organization_id"`
	EventTime      time.Time          `gorm:"index;not null" json:"event_time"`
	ReferenceId    int                `json:"reference_id"`
	ReferenceType  string             `gorm:"size:50;index" json:"reference_type"`
	Action         NotificationAction `gorm:"type:enum('C','U','D')" json:"action"`
	Payload        []byte             `gorm:"type:blob" json:"payload"`

	// Publish metadata (publish happens after commit via dispatcher).
	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// StageOutboxEvent writes the event record inside the caller's DB transaction
// but does NOT publish to Pub/Sub. Publishing is performed asynchronously by
// the outbox dispatcher after commit.
func StageOutboxEvent(ctx context.Context, tx *gorm.DB, organizationId string, eventTime time.Time, refId int, refType string, action NotificationAction, obj interface{}) error {

	var payload []byte
	var err error

	if obj != nil {
		payload, err = json.Marshal(obj)
		if err != nil {
			return err
		}
	}

	record := OutboxEventRecord{
		OrganizationId: organizationId,
		EventTime:      eventTime,
		ReferenceId:    refId,
		ReferenceType:  refType,
		Action:         action,
		Payload:        payload,
		PublishStatus:  OutboxPublishStatusPending,
		CorrelationId:  correlationIdFromContextOrNew(ctx),
	}
	return tx.Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}
