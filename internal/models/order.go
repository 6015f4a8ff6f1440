package models

import (
	"time"

	"github.com/google/uuid"
)

// Order statuses.
const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// Payment statuses.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

type Order struct {
	BaseModel
	UserID           uuid.UUID   `gorm:"type:uuid;index" json:"user_id"`
	User             *User       `json:"user,omitempty"`
	OrderNumber      string      `gorm:"uniqueIndex" json:"order_number"`
	Status           string      `json:"status"`
	PaymentStatus    string      `json:"payment_status"`
	PaymentMethod    string      `json:"payment_method"`
	PaymentReference string      `json:"payment_reference"`
	Subtotal         float64     `json:"subtotal"`
	ShippingFee      float64     `json:"shipping_fee"`
	TaxAmount        float64     `json:"tax_amount"`
	DiscountAmount   float64     `json:"discount_amount"`
	CouponCode       string      `json:"coupon_code"`
	TotalAmount      float64     `json:"total_amount"`
	Currency         string      `json:"currency"`
	ShippingAddress  []byte      `gorm:"type:jsonb" json:"shipping_address"`
	PlacedAt         time.Time   `json:"placed_at"`
	PaidAt           *time.Time  `json:"paid_at"`
	Notes            string      `json:"notes"`
	Items            []OrderItem `json:"items,omitempty"`
}

type OrderItem struct {
	BaseModel
	OrderID          uuid.UUID  `gorm:"type:uuid;index" json:"order_id"`
	ProductID        *uuid.UUID `gorm:"type:uuid" json:"product_id"`
	ProductVariantID *uuid.UUID `gorm:"type:uuid" json:"product_variant_id"`
	ProductName      string     `json:"product_name"`
	VariantLabel     string     `json:"variant_label"`
	Quantity         int        `json:"quantity"`
	UnitPrice        float64    `json:"unit_price"`
	LineTotal        float64    `json:"line_total"`
}
