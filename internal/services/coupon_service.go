package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/velora/internal/models"
	"github.com/example/velora/internal/utils"
)

var (
	ErrCouponNotFound  = errors.New("coupon not found or inactive")
	ErrCouponNotYet    = errors.New("coupon is not active yet")
	ErrCouponExpired   = errors.New("coupon has expired")
	ErrCouponMinimum   = errors.New("cart subtotal is below the coupon minimum")
	ErrCouponExhausted = errors.New("coupon usage limit reached")
)

// CouponService validates coupon codes and keeps the usage ledger.
type CouponService struct {
	db *gorm.DB
}

func NewCouponService(db *gorm.DB) *CouponService {
	return &CouponService{db: db}
}

// CouponQuote is the result of validating a code against a cart subtotal.
// Validation never consumes a usage slot; RecordUsage does that once the
// payment is confirmed.
type CouponQuote struct {
	CouponID       uuid.UUID `json:"coupon_id"`
	Code           string    `json:"code"`
	DiscountType   string    `json:"discount_type"`
	DiscountValue  float64   `json:"discount_value"`
	DiscountAmount float64   `json:"discount_amount"`
}

// Validate looks up an active coupon by code and computes the discount for
// the given subtotal.
func (s *CouponService) Validate(ctx context.Context, code string, subtotal float64) (*CouponQuote, error) {
	code = NormalizeCouponCode(code)
	if code == "" {
		return nil, ErrCouponNotFound
	}

	var coupon models.Coupon
	if err := s.db.WithContext(ctx).
		Where("code = ? AND is_active = ?", code, true).
		First(&coupon).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCouponNotFound
		}
		return nil, err
	}

	now := time.Now()
	if coupon.StartsAt != nil && now.Before(*coupon.StartsAt) {
		return nil, ErrCouponNotYet
	}
	if coupon.ExpiresAt != nil && now.After(*coupon.ExpiresAt) {
		return nil, ErrCouponExpired
	}
	if subtotal < coupon.MinimumAmount {
		return nil, ErrCouponMinimum
	}
	if coupon.UsageLimit > 0 && coupon.UsedCount >= coupon.UsageLimit {
		return nil, ErrCouponExhausted
	}

	return &CouponQuote{
		CouponID:       coupon.ID,
		Code:           coupon.Code,
		DiscountType:   coupon.DiscountType,
		DiscountValue:  coupon.DiscountValue,
		DiscountAmount: ComputeDiscount(&coupon, subtotal),
	}, nil
}

// ComputeDiscount returns the discount a coupon grants on a subtotal.
// Percentage coupons are capped at MaxDiscount when set; fixed coupons never
// exceed the subtotal itself.
func ComputeDiscount(coupon *models.Coupon, subtotal float64) float64 {
	var discount float64
	switch coupon.DiscountType {
	case models.DiscountTypePercentage:
		discount = subtotal * coupon.DiscountValue / 100
		if coupon.MaxDiscount > 0 && discount > coupon.MaxDiscount {
			discount = coupon.MaxDiscount
		}
	case models.DiscountTypeFixed:
		discount = coupon.DiscountValue
		if discount > subtotal {
			discount = subtotal
		}
	}
	if discount < 0 {
		discount = 0
	}
	return utils.RoundCents(discount)
}

// RecordUsage consumes one usage slot and appends a ledger row. The
// increment is a single conditional UPDATE, so two concurrent confirmations
// cannot both take the last slot.
func (s *CouponService) RecordUsage(ctx context.Context, code string, userID, orderID *uuid.UUID, amount float64) error {
	code = NormalizeCouponCode(code)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var coupon models.Coupon
		if err := tx.Where("code = ?", code).First(&coupon).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCouponNotFound
			}
			return err
		}

		res := tx.Model(&models.Coupon{}).
			Where("id = ? AND (usage_limit = 0 OR used_count < usage_limit)", coupon.ID).
			UpdateColumn("used_count", gorm.Expr("used_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrCouponExhausted
		}

		usage := models.CouponUsage{
			CouponID:       coupon.ID,
			UserID:         userID,
			OrderID:        orderID,
			Code:           coupon.Code,
			DiscountAmount: amount,
		}
		return tx.Create(&usage).Error
	})
}

// NormalizeCouponCode uppercases and trims a user-supplied code.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
