package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/velora/internal/middleware"
	"github.com/example/velora/internal/services"
)

// StockHandler manages advisory stock reservations during checkout.
type StockHandler struct {
	stock *services.StockService
}

// NewStockHandler constructs StockHandler.
func NewStockHandler(stock *services.StockService) *StockHandler {
	return &StockHandler{stock: stock}
}

type reserveItemRequest struct {
	ProductID        string `json:"product_id"`
	ProductVariantID string `json:"product_variant_id"`
	Quantity         int    `json:"quantity"`
}

type reserveRequest struct {
	Items []reserveItemRequest `json:"items"`
}

// Reserve places time-limited holds on the requested variants.
func (h *StockHandler) Reserve(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req reserveRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.Items) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "items are required")
	}

	items := make([]services.ReservationItem, 0, len(req.Items))
	for _, item := range req.Items {
		variantID, err := uuid.Parse(item.ProductVariantID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid product_variant_id")
		}
		if item.Quantity <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "quantity must be positive")
		}
		line := services.ReservationItem{
			ProductVariantID: variantID,
			Quantity:         item.Quantity,
		}
		if item.ProductID != "" {
			if pid, err := uuid.Parse(item.ProductID); err == nil {
				line.ProductID = pid
			}
		}
		items = append(items, line)
	}

	holds, err := h.stock.Reserve(c.Context(), userID, items)
	if err != nil {
		return serviceError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    holds,
	})
}

// Release drops every hold owned by the caller.
func (h *StockHandler) Release(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	if err := h.stock.Release(c.Context(), userID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
