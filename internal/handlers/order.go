package handlers

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/velora/internal/middleware"
	"github.com/example/velora/internal/models"
	"github.com/example/velora/internal/services"
	"github.com/example/velora/internal/utils"
)

// OrderHandler manages order endpoints.
type OrderHandler struct {
	db     *gorm.DB
	orders *services.OrderService
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(db *gorm.DB, orders *services.OrderService) *OrderHandler {
	return &OrderHandler{db: db, orders: orders}
}

type orderItemRequest struct {
	ProductID        string `json:"product_id"`
	ProductVariantID string `json:"product_variant_id"`
	Quantity         int    `json:"quantity"`
}

type createPendingRequest struct {
	Items           []orderItemRequest `json:"items"`
	PaymentMethod   string             `json:"payment_method"`
	Currency        string             `json:"currency"`
	ShippingFee     float64            `json:"shipping_fee"`
	TaxAmount       float64            `json:"tax_amount"`
	CouponCode      string             `json:"coupon_code"`
	ShippingAddress json.RawMessage    `json:"shipping_address"`
	Notes           string             `json:"notes"`
}

// CreatePending opens a pending order after validating stock for every item.
func (h *OrderHandler) CreatePending(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req createPendingRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.Items) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "items are required")
	}

	input := services.CreateOrderInput{
		PaymentMethod:   req.PaymentMethod,
		Currency:        req.Currency,
		ShippingFee:     req.ShippingFee,
		TaxAmount:       req.TaxAmount,
		CouponCode:      req.CouponCode,
		ShippingAddress: req.ShippingAddress,
		Notes:           req.Notes,
	}
	for _, item := range req.Items {
		variantID, err := uuid.Parse(item.ProductVariantID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid product_variant_id")
		}
		line := services.OrderItemInput{
			ProductVariantID: variantID,
			Quantity:         item.Quantity,
		}
		if item.ProductID != "" {
			if pid, err := uuid.Parse(item.ProductID); err == nil {
				line.ProductID = pid
			}
		}
		input.Items = append(input.Items, line)
	}

	order, err := h.orders.CreatePending(c.Context(), userID, input)
	if err != nil {
		return serviceError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"id":              order.ID,
			"order_number":    order.OrderNumber,
			"status":          order.Status,
			"payment_status":  order.PaymentStatus,
			"subtotal":        order.Subtotal,
			"discount_amount": order.DiscountAmount,
			"total":           order.TotalAmount,
			"currency":        order.Currency,
			"placed_at":       order.PlacedAt,
		},
	})
}

type confirmPaymentRequest struct {
	OrderID          string `json:"order_id"`
	PaymentReference string `json:"payment_reference"`
}

// ConfirmPayment verifies a payment with the provider recorded on the order
// and flips it to paid. The caller must own the order.
func (h *OrderHandler) ConfirmPayment(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req confirmPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.OrderID == "" || req.PaymentReference == "" {
		return fiber.NewError(fiber.StatusBadRequest, "order_id and payment_reference are required")
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid order_id")
	}

	var order models.Order
	if err := h.db.First(&order, "id = ? AND user_id = ?", orderID, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return err
	}

	var confirmed *models.Order
	switch order.PaymentMethod {
	case models.PaymentProviderStripe:
		confirmed, err = h.orders.ConfirmStripePayment(c.Context(), orderID, req.PaymentReference)
	case models.PaymentProviderPayPal:
		confirmed, err = h.orders.ConfirmPayPalPayment(c.Context(), orderID, req.PaymentReference)
	default:
		return fiber.NewError(fiber.StatusBadRequest, "unsupported payment method")
	}
	if err != nil {
		return serviceError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"id":                confirmed.ID,
			"order_number":      confirmed.OrderNumber,
			"status":            confirmed.Status,
			"payment_status":    confirmed.PaymentStatus,
			"payment_reference": confirmed.PaymentReference,
			"paid_at":           confirmed.PaidAt,
		},
	})
}

// ListOrders returns orders for the authenticated user.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	pg := utils.ParsePagination(c)
	query := h.db.Where("user_id = ?", userID).Model(&models.Order{})

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var orders []models.Order
	if err := query.Preload("Items").
		Order("placed_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&orders).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    orders,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// GetOrder returns a single order for the authenticated user.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var order models.Order
	if err := h.db.Preload("Items").
		First(&order, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}
