package models

import (
	"github.com/google/uuid"
)

// Payment providers.
const (
	PaymentProviderStripe = "stripe"
	PaymentProviderPayPal = "paypal"
)

// PaymentTransaction is an audit row per gateway interaction: intent
// creation, capture and confirmation each append one.
type PaymentTransaction struct {
	BaseModel
	Provider    string     `gorm:"index" json:"provider"`
	ProviderRef string     `gorm:"index" json:"provider_ref"`
	OrderID     *uuid.UUID `gorm:"type:uuid;index" json:"order_id"`
	Amount      float64    `json:"amount"`
	Currency    string     `json:"currency"`
	Status      string     `json:"status"`
	Payload     []byte     `gorm:"type:jsonb" json:"payload"`
}
