package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/example/velora/internal/services"
)

// ErrorHandler renders every error as a JSON body with an "error" message,
// keeping internal details out of 500 responses.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal server error"

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
		message = fiberErr.Message
	}

	if code >= fiber.StatusInternalServerError {
		log.Printf("[HTTP] %s %s failed: %v", c.Method(), c.Path(), err)
		message = "internal server error"
	}

	return c.Status(code).JSON(fiber.Map{"error": message})
}

// serviceError maps service-layer failures onto the HTTP error taxonomy:
// validation and state-mismatch problems become 400/404, unreachable
// providers become 503, everything else bubbles up as a 500.
func serviceError(err error) error {
	if err == nil {
		return nil
	}

	var stockErr *services.InsufficientStockError
	if errors.As(err, &stockErr) {
		return fiber.NewError(fiber.StatusBadRequest, stockErr.Error())
	}

	var gwErr *services.GatewayError
	if errors.As(err, &gwErr) {
		if gwErr.Unavailable {
			return fiber.NewError(fiber.StatusServiceUnavailable, gwErr.Message)
		}
		return fiber.NewError(fiber.StatusBadRequest, gwErr.Message)
	}

	switch {
	case errors.Is(err, services.ErrOrderNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrCouponNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrOrderNotPending),
		errors.Is(err, services.ErrPaymentNotCompleted),
		errors.Is(err, services.ErrPaymentAmountMismatch),
		errors.Is(err, services.ErrPaymentOrderMismatch),
		errors.Is(err, services.ErrNoOrderItems),
		errors.Is(err, services.ErrVariantNotFound),
		errors.Is(err, services.ErrCouponNotYet),
		errors.Is(err, services.ErrCouponExpired),
		errors.Is(err, services.ErrCouponMinimum),
		errors.Is(err, services.ErrCouponExhausted):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	return err
}
