package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Category struct {
	BaseModel
	Slug        string `gorm:"uniqueIndex" json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
	IsActive    bool   `json:"is_active"`
}

type Product struct {
	BaseModel
	Slug             string           `gorm:"uniqueIndex" json:"slug"`
	Name             string           `json:"name"`
	ShortDescription string           `json:"short_description"`
	LongDescription  string           `json:"long_description"`
	BasePrice        float64          `json:"base_price"`
	Currency         string           `json:"currency"`
	Images           pq.StringArray   `gorm:"type:text[]" json:"images"`
	RatingAverage    float64          `json:"rating_average"`
	RatingCount      int              `json:"rating_count"`
	IsActive         bool             `json:"is_active"`
	IsFeatured       bool             `json:"is_featured"`
	CategoryID       *uuid.UUID       `gorm:"type:uuid" json:"category_id"`
	Category         *Category        `json:"category,omitempty"`
	Variants         []ProductVariant `json:"variants,omitempty"`
}

// ProductVariant is the purchasable unit; stock lives here and must stay >= 0.
type ProductVariant struct {
	BaseModel
	ProductID uuid.UUID `gorm:"type:uuid;index" json:"product_id"`
	SKU       string    `gorm:"uniqueIndex" json:"sku"`
	Color     string    `json:"color"`
	Size      string    `json:"size"`
	Price     float64   `json:"price"`
	Stock     int       `json:"stock"`
	IsActive  bool      `json:"is_active"`
}

// Label renders a human readable variant description for order lines.
func (v ProductVariant) Label() string {
	switch {
	case v.Color != "" && v.Size != "":
		return v.Color + " / " + v.Size
	case v.Color != "":
		return v.Color
	default:
		return v.Size
	}
}
