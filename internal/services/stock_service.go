package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/velora/internal/models"
)

var ErrVariantNotFound = errors.New("product variant not found")

// InsufficientStockError reports which variant could not satisfy a request.
type InsufficientStockError struct {
	VariantID uuid.UUID
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for variant %s: requested %d, available %d",
		e.VariantID, e.Requested, e.Available)
}

// StockService manages variant inventory: advisory reservations during
// checkout and the atomic decrement after a confirmed payment.
type StockService struct {
	db      *gorm.DB
	holdTTL time.Duration
}

func NewStockService(db *gorm.DB, holdTTL time.Duration) *StockService {
	if holdTTL <= 0 {
		holdTTL = 15 * time.Minute
	}
	return &StockService{db: db, holdTTL: holdTTL}
}

// ReservationItem is one line of a reservation request.
type ReservationItem struct {
	ProductID        uuid.UUID `json:"product_id"`
	ProductVariantID uuid.UUID `json:"product_variant_id"`
	Quantity         int       `json:"quantity"`
}

// Reserve sweeps expired holds, checks availability for every item and, if
// all fit, inserts holds with the configured TTL. Check and insert run in
// one transaction so two checkouts cannot both hold the last unit.
func (s *StockService) Reserve(ctx context.Context, userID uuid.UUID, items []ReservationItem) ([]models.StockReservation, error) {
	if len(items) == 0 {
		return nil, errors.New("no items to reserve")
	}

	var created []models.StockReservation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("expires_at < ?", time.Now()).
			Delete(&models.StockReservation{}).Error; err != nil {
			return err
		}

		// A new reservation replaces any live holds the same user has.
		if err := tx.Where("user_id = ?", userID).
			Delete(&models.StockReservation{}).Error; err != nil {
			return err
		}

		expiresAt := time.Now().Add(s.holdTTL)
		for _, item := range items {
			if item.Quantity <= 0 {
				return fmt.Errorf("invalid quantity %d for variant %s", item.Quantity, item.ProductVariantID)
			}

			available, err := s.availableLocked(tx, item.ProductVariantID)
			if err != nil {
				return err
			}
			if item.Quantity > available {
				return &InsufficientStockError{
					VariantID: item.ProductVariantID,
					Requested: item.Quantity,
					Available: available,
				}
			}

			hold := models.StockReservation{
				UserID:           userID,
				ProductID:        item.ProductID,
				ProductVariantID: item.ProductVariantID,
				Quantity:         item.Quantity,
				ExpiresAt:        expiresAt,
			}
			if err := tx.Create(&hold).Error; err != nil {
				return err
			}
			created = append(created, hold)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Release drops every hold owned by the user.
func (s *StockService) Release(ctx context.Context, userID uuid.UUID) error {
	return s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.StockReservation{}).Error
}

// SweepExpired removes stale holds and returns how many were dropped.
func (s *StockService) SweepExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at < ?", time.Now()).
		Delete(&models.StockReservation{})
	return res.RowsAffected, res.Error
}

// Available returns variant stock minus live reservations.
func (s *StockService) Available(ctx context.Context, variantID uuid.UUID) (int, error) {
	return s.availableTx(s.db.WithContext(ctx), variantID, false)
}

// availableLocked reads availability with the variant row locked FOR
// UPDATE. Under Postgres READ COMMITTED two concurrent reserves would
// otherwise both read the pre-insert reservation sum and both commit a hold
// on the last unit; the row lock serializes them. SQLite rejects FOR UPDATE
// and serializes writers on its own, so the clause is Postgres-only.
func (s *StockService) availableLocked(tx *gorm.DB, variantID uuid.UUID) (int, error) {
	return s.availableTx(tx, variantID, tx.Dialector.Name() == "postgres")
}

func (s *StockService) availableTx(tx *gorm.DB, variantID uuid.UUID, lock bool) (int, error) {
	variantQuery := tx
	if lock {
		variantQuery = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var variant models.ProductVariant
	if err := variantQuery.First(&variant, "id = ?", variantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrVariantNotFound
		}
		return 0, err
	}

	var reserved int64
	if err := tx.Model(&models.StockReservation{}).
		Where("product_variant_id = ? AND expires_at >= ?", variantID, time.Now()).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&reserved).Error; err != nil {
		return 0, err
	}

	available := variant.Stock - int(reserved)
	if available < 0 {
		available = 0
	}
	return available, nil
}

// Decrement reduces variant stock by qty as a single conditional UPDATE.
// When qty exceeds the remaining stock the value is floored at zero instead
// of going negative.
func (s *StockService) Decrement(ctx context.Context, variantID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}

	res := s.db.WithContext(ctx).Model(&models.ProductVariant{}).
		Where("id = ? AND stock >= ?", variantID, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// Not enough left to subtract fully; clamp to zero.
	res = s.db.WithContext(ctx).Model(&models.ProductVariant{}).
		Where("id = ?", variantID).
		UpdateColumn("stock", 0)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVariantNotFound
	}
	return nil
}
