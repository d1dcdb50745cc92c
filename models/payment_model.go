package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
	PaymentCancelled  PaymentStatus = "cancelled"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:    {PaymentProcessing, PaymentCancelled},
	PaymentProcessing: {PaymentCompleted, PaymentFailed, PaymentCancelled},
}

func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentCompleted || s == PaymentFailed || s == PaymentCancelled
}

// CanTransitionTo reports whether a payment may move from s to next.
// Terminal states never move again.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentStatusesBefore lists the states a payment may be in to move to next.
// Conditional updates use it as their status guard.
func PaymentStatusesBefore(next PaymentStatus) []PaymentStatus {
	var from []PaymentStatus
	for _, s := range []PaymentStatus{PaymentPending, PaymentProcessing} {
		if s.CanTransitionTo(next) {
			from = append(from, s)
		}
	}
	return from
}

type Payment struct {
	ID                uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	UserID            uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	OrderNumber       string         `gorm:"size:64;not null;uniqueIndex" json:"order_number"`
	Amount            float64        `gorm:"type:numeric(10,2);not null" json:"amount"`
	Currency          string         `gorm:"size:3;not null;default:'KES'" json:"currency"`
	PaymentMethod     string         `gorm:"size:20;not null;default:'mpesa'" json:"payment_method"`
	PhoneNumber       string         `gorm:"column:mpesa_phone_number;size:20" json:"mpesa_phone_number"`
	CheckoutRequestID *string        `gorm:"column:mpesa_checkout_request_id;size:255;uniqueIndex" json:"mpesa_checkout_request_id,omitempty"`
	MerchantRequestID *string        `gorm:"column:mpesa_merchant_request_id;size:255;index" json:"mpesa_merchant_request_id,omitempty"`
	ReceiptNumber     *string        `gorm:"column:mpesa_receipt_number;size:255" json:"mpesa_receipt_number,omitempty"`
	Status            PaymentStatus  `gorm:"size:20;not null;default:'pending';index" json:"status"`
	GatewayResponse   datatypes.JSON `gorm:"column:payment_gateway_response;type:jsonb" json:"payment_gateway_response,omitempty"`
	Items             []OrderItem    `gorm:"type:jsonb;serializer:json" json:"items,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
