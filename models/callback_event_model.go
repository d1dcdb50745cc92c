package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CallbackEventStatus string

const (
	CallbackReceived  CallbackEventStatus = "received"
	CallbackProcessed CallbackEventStatus = "processed"
	CallbackFailed    CallbackEventStatus = "failed"
)

// CallbackEvent keeps every gateway callback so failed reconciliations can be replayed.
type CallbackEvent struct {
	ID                uuid.UUID           `gorm:"type:uuid;primary_key" json:"id"`
	CheckoutRequestID string              `gorm:"size:255;index" json:"checkout_request_id"`
	MerchantRequestID string              `gorm:"size:255" json:"merchant_request_id"`
	ResultCode        *int                `json:"result_code"`
	Payload           datatypes.JSON      `gorm:"type:jsonb;not null" json:"payload"`
	Status            CallbackEventStatus `gorm:"size:20;not null;default:'received';index" json:"status"`
	Attempts          int                 `gorm:"not null;default:0" json:"attempts"`
	LastError         *string             `gorm:"type:text" json:"last_error,omitempty"`
	ProcessedAt       *time.Time          `json:"processed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (e *CallbackEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
