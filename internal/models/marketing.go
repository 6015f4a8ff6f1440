package models

import (
	"time"

	"github.com/google/uuid"
)

type Review struct {
	BaseModel
	ProductID  uuid.UUID `gorm:"type:uuid;index" json:"product_id"`
	UserID     uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	Rating     int       `json:"rating"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	IsApproved bool      `json:"is_approved"`
}

type WishlistItem struct {
	BaseModel
	UserID    uuid.UUID `gorm:"type:uuid;index:idx_wishlist_user_product,unique" json:"user_id"`
	ProductID uuid.UUID `gorm:"type:uuid;index:idx_wishlist_user_product,unique" json:"product_id"`
	Product   *Product  `json:"product,omitempty"`
}

type NewsletterSubscriber struct {
	BaseModel
	Email          string     `gorm:"uniqueIndex" json:"email"`
	IsActive       bool       `json:"is_active"`
	UnsubscribedAt *time.Time `json:"unsubscribed_at"`
}

type Testimonial struct {
	BaseModel
	Author      string `json:"author"`
	Quote       string `json:"quote"`
	Rating      int    `json:"rating"`
	IsPublished bool   `json:"is_published"`
}
