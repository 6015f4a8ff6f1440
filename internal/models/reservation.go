package models

import (
	"time"

	"github.com/google/uuid"
)

// StockReservation is an advisory, time-limited hold on variant inventory
// taken during checkout. Expired rows are swept opportunistically.
type StockReservation struct {
	BaseModel
	UserID           uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	ProductID        uuid.UUID `gorm:"type:uuid" json:"product_id"`
	ProductVariantID uuid.UUID `gorm:"type:uuid;index" json:"product_variant_id"`
	Quantity         int       `json:"quantity"`
	ExpiresAt        time.Time `gorm:"index" json:"expires_at"`
}
