package handlers

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/velora/internal/models"
	"github.com/example/velora/internal/services"
	"github.com/example/velora/internal/utils"
)

// PaymentHandler creates provider-side payment objects for pending orders.
type PaymentHandler struct {
	db     *gorm.DB
	stripe *services.StripeService
	paypal *services.PayPalService
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(db *gorm.DB, stripe *services.StripeService, paypal *services.PayPalService) *PaymentHandler {
	return &PaymentHandler{db: db, stripe: stripe, paypal: paypal}
}

type paymentRequest struct {
	OrderID string `json:"order_id"`
}

// CreateStripeIntent creates a PaymentIntent for a pending order and returns
// the client secret the storefront needs to collect the card.
func (h *PaymentHandler) CreateStripeIntent(c *fiber.Ctx) error {
	order, err := h.loadPendingOrder(c)
	if err != nil {
		return err
	}

	intent, err := h.stripe.CreatePaymentIntent(c.Context(),
		utils.MinorUnits(order.TotalAmount), order.Currency,
		map[string]string{"order_id": order.ID.String(), "order_number": order.OrderNumber})
	if err != nil {
		return serviceError(err)
	}

	h.recordTransaction(models.PaymentProviderStripe, intent.ID, order, intent.Status, intent)

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"payment_intent_id": intent.ID,
			"client_secret":     intent.ClientSecret,
			"status":            intent.Status,
		},
	})
}

// CreatePayPalOrder creates a PayPal order for a pending order.
func (h *PaymentHandler) CreatePayPalOrder(c *fiber.Ctx) error {
	order, err := h.loadPendingOrder(c)
	if err != nil {
		return err
	}

	ppOrder, err := h.paypal.CreateOrder(c.Context(), order.TotalAmount, order.Currency, order.ID.String())
	if err != nil {
		return serviceError(err)
	}

	h.recordTransaction(models.PaymentProviderPayPal, ppOrder.ID, order, ppOrder.Status, ppOrder)

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"paypal_order_id": ppOrder.ID,
			"status":          ppOrder.Status,
		},
	})
}

type capturePayPalRequest struct {
	PayPalOrderID string `json:"paypal_order_id"`
}

// CapturePayPalOrder captures an approved PayPal order server-side.
func (h *PaymentHandler) CapturePayPalOrder(c *fiber.Ctx) error {
	var req capturePayPalRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.PayPalOrderID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "paypal_order_id is required")
	}

	ppOrder, err := h.paypal.CaptureOrder(c.Context(), req.PayPalOrderID)
	if err != nil {
		return serviceError(err)
	}

	h.recordTransaction(models.PaymentProviderPayPal, ppOrder.CaptureID(), nil, ppOrder.Status, ppOrder)

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"paypal_order_id": ppOrder.ID,
			"capture_id":      ppOrder.CaptureID(),
			"status":          ppOrder.Status,
		},
	})
}

func (h *PaymentHandler) loadPendingOrder(c *fiber.Ctx) (*models.Order, error) {
	var req paymentRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.OrderID == "" {
		return nil, fiber.NewError(fiber.StatusBadRequest, "order_id is required")
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid order_id")
	}

	var order models.Order
	if err := h.db.First(&order, "id = ?", orderID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return nil, err
	}
	if order.Status != models.OrderStatusPending {
		return nil, fiber.NewError(fiber.StatusBadRequest, "order is not pending")
	}
	return &order, nil
}

func (h *PaymentHandler) recordTransaction(provider, ref string, order *models.Order, status string, payload any) {
	raw, _ := json.Marshal(payload)
	txn := models.PaymentTransaction{
		Provider:    provider,
		ProviderRef: ref,
		Status:      status,
		Payload:     raw,
	}
	if order != nil {
		orderID := order.ID
		txn.OrderID = &orderID
		txn.Amount = order.TotalAmount
		txn.Currency = order.Currency
	}
	// Audit only; a failed insert must not fail the payment call.
	_ = h.db.Create(&txn).Error
}
