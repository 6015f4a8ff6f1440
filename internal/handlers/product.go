package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/example/velora/internal/models"
	"github.com/example/velora/internal/services"
	"github.com/example/velora/internal/utils"
)

// ProductHandler manages product and variant endpoints.
type ProductHandler struct {
	db    *gorm.DB
	stock *services.StockService
}

// NewProductHandler constructs ProductHandler.
func NewProductHandler(db *gorm.DB, stock *services.StockService) *ProductHandler {
	return &ProductHandler{db: db, stock: stock}
}

// ListProducts returns paginated products with optional filters.
func (h *ProductHandler) ListProducts(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Product{}).Where("is_active = ?", true)

	if v := c.Query("category_id"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			query = query.Where("category_id = ?", id)
		}
	}

	if search := strings.TrimSpace(c.Query("search")); search != "" {
		q := "%" + search + "%"
		query = query.Where("name ILIKE ? OR short_description ILIKE ?", q, q)
	}

	if minPrice := c.Query("min_price"); minPrice != "" {
		if val, err := strconv.ParseFloat(minPrice, 64); err == nil {
			query = query.Where("base_price >= ?", val)
		}
	}

	if maxPrice := c.Query("max_price"); maxPrice != "" {
		if val, err := strconv.ParseFloat(maxPrice, 64); err == nil {
			query = query.Where("base_price <= ?", val)
		}
	}

	if c.Query("featured") == "true" {
		query = query.Where("is_featured = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var products []models.Product
	if err := query.Preload("Category").Preload("Variants").
		Limit(pg.Limit).Offset(pg.Offset).
		Order("created_at desc").
		Find(&products).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    products,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// GetProduct loads a product with its variants, by id or slug.
func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	ref := c.Params("id")

	query := h.db.Preload("Category").Preload("Variants")
	var product models.Product
	var err error
	if id, parseErr := uuid.Parse(ref); parseErr == nil {
		err = query.First(&product, "id = ?", id).Error
	} else {
		err = query.First(&product, "slug = ?", ref).Error
	}
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "product not found")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": product})
}

type variantRequest struct {
	ID       string  `json:"id"`
	SKU      string  `json:"sku"`
	Color    string  `json:"color"`
	Size     string  `json:"size"`
	Price    float64 `json:"price"`
	Stock    int     `json:"stock"`
	IsActive bool    `json:"is_active"`
}

type productRequest struct {
	Slug             string           `json:"slug"`
	Name             string           `json:"name"`
	ShortDescription string           `json:"short_description"`
	LongDescription  string           `json:"long_description"`
	BasePrice        float64          `json:"base_price"`
	Currency         string           `json:"currency"`
	Images           []string         `json:"images"`
	IsActive         bool             `json:"is_active"`
	IsFeatured       bool             `json:"is_featured"`
	CategoryID       string           `json:"category_id"`
	Variants         []variantRequest `json:"variants"`
}

// CreateProduct inserts a product with its variants.
func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	var req productRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Slug == "" || req.Name == "" {
		return fiber.NewError(fiber.StatusBadRequest, "slug and name are required")
	}

	product := models.Product{
		Slug:             req.Slug,
		Name:             req.Name,
		ShortDescription: req.ShortDescription,
		LongDescription:  req.LongDescription,
		BasePrice:        req.BasePrice,
		Currency:         req.Currency,
		Images:           pq.StringArray(req.Images),
		IsActive:         req.IsActive,
		IsFeatured:       req.IsFeatured,
	}
	if product.Currency == "" {
		product.Currency = "USD"
	}
	if req.CategoryID != "" {
		if id, err := uuid.Parse(req.CategoryID); err == nil {
			product.CategoryID = &id
		}
	}
	for _, v := range req.Variants {
		product.Variants = append(product.Variants, models.ProductVariant{
			SKU:      v.SKU,
			Color:    v.Color,
			Size:     v.Size,
			Price:    v.Price,
			Stock:    v.Stock,
			IsActive: v.IsActive,
		})
	}

	if err := h.db.Create(&product).Error; err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": product})
}

// UpdateProduct updates product fields and replaces its variant set.
func (h *ProductHandler) UpdateProduct(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var product models.Product
	if err := h.db.Preload("Variants").First(&product, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "product not found")
		}
		return err
	}

	var req productRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"slug":              req.Slug,
			"name":              req.Name,
			"short_description": req.ShortDescription,
			"long_description":  req.LongDescription,
			"base_price":        req.BasePrice,
			"is_active":         req.IsActive,
			"is_featured":       req.IsFeatured,
		}
		if req.Currency != "" {
			updates["currency"] = req.Currency
		}
		if req.Images != nil {
			updates["images"] = pq.StringArray(req.Images)
		}
		if req.CategoryID != "" {
			if cid, err := uuid.Parse(req.CategoryID); err == nil {
				updates["category_id"] = cid
			}
		}
		if err := tx.Model(&models.Product{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}

		if req.Variants == nil {
			return nil
		}

		// Variants carrying an id are updated in place; new ones are
		// inserted; anything absent from the request is removed.
		keep := make([]uuid.UUID, 0, len(req.Variants))
		for _, v := range req.Variants {
			if v.ID != "" {
				vid, err := uuid.Parse(v.ID)
				if err != nil {
					return fiber.NewError(fiber.StatusBadRequest, "invalid variant id")
				}
				keep = append(keep, vid)
				if err := tx.Model(&models.ProductVariant{}).
					Where("id = ? AND product_id = ?", vid, id).
					Updates(map[string]any{
						"sku":       v.SKU,
						"color":     v.Color,
						"size":      v.Size,
						"price":     v.Price,
						"stock":     v.Stock,
						"is_active": v.IsActive,
					}).Error; err != nil {
					return err
				}
				continue
			}

			variant := models.ProductVariant{
				ProductID: id,
				SKU:       v.SKU,
				Color:     v.Color,
				Size:      v.Size,
				Price:     v.Price,
				Stock:     v.Stock,
				IsActive:  v.IsActive,
			}
			if err := tx.Create(&variant).Error; err != nil {
				return err
			}
			keep = append(keep, variant.ID)
		}

		removal := tx.Where("product_id = ?", id)
		if len(keep) > 0 {
			removal = removal.Where("id NOT IN ?", keep)
		}
		return removal.Delete(&models.ProductVariant{}).Error
	})
	if err != nil {
		return err
	}

	if err := h.db.Preload("Category").Preload("Variants").First(&product, "id = ?", id).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": product})
}

// DeleteProduct removes a product and its variants.
func (h *ProductHandler) DeleteProduct(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	return h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.ProductVariant{}, "product_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Product{}, "id = ?", id).Error; err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

// GetVariantStock reports available stock for a variant, net of live
// reservations.
func (h *ProductHandler) GetVariantStock(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("variantId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid variant id")
	}

	available, err := h.stock.Available(c.Context(), id)
	if err != nil {
		return serviceError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"variant_id": id,
			"available":  available,
		},
	})
}
