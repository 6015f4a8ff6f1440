package models

import (
	"time"

	"github.com/google/uuid"
)

// Coupon discount types.
const (
	DiscountTypePercentage = "percentage"
	DiscountTypeFixed      = "fixed"
)

// Coupon holds a discount code. Codes are stored uppercase; a UsageLimit of
// zero means unlimited use.
type Coupon struct {
	BaseModel
	Code          string     `gorm:"uniqueIndex" json:"code"`
	Description   string     `json:"description"`
	DiscountType  string     `json:"discount_type"`
	DiscountValue float64    `json:"discount_value"`
	MinimumAmount float64    `json:"minimum_amount"`
	MaxDiscount   float64    `json:"max_discount"`
	UsageLimit    int        `json:"usage_limit"`
	UsedCount     int        `json:"used_count"`
	StartsAt      *time.Time `json:"starts_at"`
	ExpiresAt     *time.Time `json:"expires_at"`
	IsActive      bool       `json:"is_active"`
}

// CouponUsage is the ledger row recording that a coupon discount was applied
// to a given order.
type CouponUsage struct {
	BaseModel
	CouponID       uuid.UUID  `gorm:"type:uuid;index" json:"coupon_id"`
	UserID         *uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	OrderID        *uuid.UUID `gorm:"type:uuid;index" json:"order_id"`
	Code           string     `json:"code"`
	DiscountAmount float64    `json:"discount_amount"`
}
