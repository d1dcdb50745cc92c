package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderPreparing OrderStatus = "preparing"
	OrderReady     OrderStatus = "ready"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:   {OrderConfirmed, OrderCancelled},
	OrderConfirmed: {OrderPreparing, OrderCancelled},
	OrderPreparing: {OrderReady, OrderCancelled},
	OrderReady:     {OrderCompleted, OrderCancelled},
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type OrderItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name" validate:"required"`
	Price    float64 `json:"price" validate:"gte=0"`
	Quantity int     `json:"quantity" validate:"gte=1"`
	Image    string  `json:"image,omitempty"`
	Slug     string  `json:"slug,omitempty"`
}

type Order struct {
	ID            uuid.UUID   `gorm:"type:uuid;primary_key" json:"id"`
	UserID        uuid.UUID   `gorm:"type:uuid;not null;index" json:"user_id"`
	OrderNumber   string      `gorm:"size:64;not null;uniqueIndex" json:"order_number"`
	PaymentID     *uuid.UUID  `gorm:"type:uuid;index" json:"payment_id"`
	Items         []OrderItem `gorm:"type:jsonb;serializer:json" json:"items"`
	TotalAmount   float64     `gorm:"type:numeric(10,2);not null" json:"total_amount"`
	CustomerPhone string      `gorm:"size:20" json:"customer_phone,omitempty"`
	CustomerEmail string      `gorm:"size:255" json:"customer_email,omitempty"`
	CustomerName  string      `gorm:"size:255" json:"customer_name,omitempty"`
	Status        OrderStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	ReceiptURL    *string     `gorm:"type:text" json:"receipt_url,omitempty"`

	Payment *Payment `gorm:"foreignkey:PaymentID" json:"payments,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
