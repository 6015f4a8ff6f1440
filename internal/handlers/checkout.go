package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/velora/internal/services"
)

// CheckoutHandler confirms payments for checkout sessions. These routes are
// called by the storefront after the provider-side flow finishes; every
// confirmation is re-verified against the provider before the order flips
// to paid.
type CheckoutHandler struct {
	orders *services.OrderService
}

// NewCheckoutHandler constructs CheckoutHandler.
func NewCheckoutHandler(orders *services.OrderService) *CheckoutHandler {
	return &CheckoutHandler{orders: orders}
}

type confirmStripeRequest struct {
	OrderID         string `json:"order_id"`
	PaymentIntentID string `json:"payment_intent_id"`
}

// ConfirmStripePayment flips a pending order to paid once Stripe reports the
// intent as succeeded.
func (h *CheckoutHandler) ConfirmStripePayment(c *fiber.Ctx) error {
	var req confirmStripeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.OrderID == "" || req.PaymentIntentID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "order_id and payment_intent_id are required")
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid order_id")
	}

	order, err := h.orders.ConfirmStripePayment(c.Context(), orderID, req.PaymentIntentID)
	if err != nil {
		return serviceError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"id":                order.ID,
			"order_number":      order.OrderNumber,
			"status":            order.Status,
			"payment_status":    order.PaymentStatus,
			"payment_reference": order.PaymentReference,
		},
	})
}

type confirmPayPalRequest struct {
	OrderID       string `json:"order_id"`
	PayPalOrderID string `json:"paypal_order_id"`
}

// ConfirmPayPalPayment flips a pending order to paid once PayPal reports the
// order as COMPLETED. The capture status is fetched from PayPal here rather
// than taken from the client payload.
func (h *CheckoutHandler) ConfirmPayPalPayment(c *fiber.Ctx) error {
	var req confirmPayPalRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.OrderID == "" || req.PayPalOrderID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "order_id and paypal_order_id are required")
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid order_id")
	}

	order, err := h.orders.ConfirmPayPalPayment(c.Context(), orderID, req.PayPalOrderID)
	if err != nil {
		return serviceError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"id":                order.ID,
			"order_number":      order.OrderNumber,
			"status":            order.Status,
			"payment_status":    order.PaymentStatus,
			"payment_reference": order.PaymentReference,
		},
	})
}
