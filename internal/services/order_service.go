package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/velora/internal/models"
	"github.com/example/velora/internal/utils"
)

var (
	ErrOrderNotFound         = errors.New("order not found")
	ErrOrderNotPending       = errors.New("order is not pending")
	ErrPaymentNotCompleted   = errors.New("payment has not completed")
	ErrPaymentAmountMismatch = errors.New("payment amount does not match order total")
	ErrPaymentOrderMismatch  = errors.New("payment does not reference this order")
	ErrNoOrderItems          = errors.New("order has no items")
)

// OrderService owns the checkout workflow: pending order creation, payment
// confirmation against the provider, and post-payment stock fulfilment.
type OrderService struct {
	db       *gorm.DB
	stock    *StockService
	coupons  *CouponService
	stripe   *StripeService
	paypal   *PayPalService
	telegram *TelegramService
}

func NewOrderService(db *gorm.DB, stock *StockService, coupons *CouponService,
	stripe *StripeService, paypal *PayPalService, telegram *TelegramService) *OrderService {
	return &OrderService{
		db:       db,
		stock:    stock,
		coupons:  coupons,
		stripe:   stripe,
		paypal:   paypal,
		telegram: telegram,
	}
}

// OrderItemInput is one cart line of a create-pending request.
type OrderItemInput struct {
	ProductID        uuid.UUID
	ProductVariantID uuid.UUID
	Quantity         int
}

// CreateOrderInput carries everything needed to open a pending order.
type CreateOrderInput struct {
	Items           []OrderItemInput
	PaymentMethod   string
	Currency        string
	ShippingFee     float64
	TaxAmount       float64
	CouponCode      string
	ShippingAddress json.RawMessage
	Notes           string
}

// CreatePending validates stock and writes the order plus its items in one
// transaction: either everything lands or nothing does. Any item whose
// requested quantity exceeds available stock rejects the whole request.
func (s *OrderService) CreatePending(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (*models.Order, error) {
	if len(input.Items) == 0 {
		return nil, ErrNoOrderItems
	}

	currency := input.Currency
	if currency == "" {
		currency = "USD"
	}

	order := models.Order{
		UserID:          userID,
		Status:          models.OrderStatusPending,
		PaymentStatus:   models.PaymentStatusPending,
		PaymentMethod:   input.PaymentMethod,
		Currency:        currency,
		ShippingFee:     input.ShippingFee,
		TaxAmount:       input.TaxAmount,
		ShippingAddress: input.ShippingAddress,
		Notes:           input.Notes,
		PlacedAt:        time.Now(),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var subtotal float64
		for _, line := range input.Items {
			if line.Quantity <= 0 {
				return fmt.Errorf("invalid quantity %d for variant %s", line.Quantity, line.ProductVariantID)
			}

			var variant models.ProductVariant
			if err := tx.First(&variant, "id = ?", line.ProductVariantID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrVariantNotFound
				}
				return err
			}

			if variant.Stock < line.Quantity {
				return &InsufficientStockError{
					VariantID: variant.ID,
					Requested: line.Quantity,
					Available: variant.Stock,
				}
			}

			var product models.Product
			if err := tx.First(&product, "id = ?", variant.ProductID).Error; err != nil {
				return err
			}

			// The variant's stored price is authoritative; client-sent
			// prices are ignored.
			lineTotal := utils.RoundCents(variant.Price * float64(line.Quantity))
			subtotal += lineTotal

			productID := product.ID
			variantID := variant.ID
			order.Items = append(order.Items, models.OrderItem{
				ProductID:        &productID,
				ProductVariantID: &variantID,
				ProductName:      product.Name,
				VariantLabel:     variant.Label(),
				Quantity:         line.Quantity,
				UnitPrice:        variant.Price,
				LineTotal:        lineTotal,
			})
		}

		order.Subtotal = utils.RoundCents(subtotal)

		if input.CouponCode != "" {
			quote, err := s.coupons.Validate(ctx, input.CouponCode, order.Subtotal)
			if err != nil {
				return err
			}
			order.CouponCode = quote.Code
			order.DiscountAmount = quote.DiscountAmount
		}

		total := order.Subtotal + order.ShippingFee + order.TaxAmount - order.DiscountAmount
		if total < 0 {
			total = 0
		}
		order.TotalAmount = utils.RoundCents(total)
		order.OrderNumber = generateOrderNumber()

		return tx.Create(&order).Error
	})
	if err != nil {
		return nil, err
	}

	go s.notifyNewOrder(order)

	return &order, nil
}

// ConfirmStripePayment re-fetches the payment intent from Stripe and flips
// the order to paid only when the provider reports success and the captured
// amount matches the order total.
func (s *OrderService) ConfirmStripePayment(ctx context.Context, orderID uuid.UUID, intentID string) (*models.Order, error) {
	order, err := s.pendingOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	intent, err := s.stripe.GetPaymentIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent.Status != StripePaymentIntentSucceeded {
		return nil, ErrPaymentNotCompleted
	}
	if intent.Amount != utils.MinorUnits(order.TotalAmount) {
		return nil, ErrPaymentAmountMismatch
	}

	payload, _ := json.Marshal(intent)
	if err := s.markPaid(ctx, order, models.PaymentProviderStripe, intent.ID, payload); err != nil {
		return nil, err
	}
	return order, nil
}

// ConfirmPayPalPayment re-verifies the capture server-side instead of
// trusting a client-relayed capture result.
func (s *OrderService) ConfirmPayPalPayment(ctx context.Context, orderID uuid.UUID, paypalOrderID string) (*models.Order, error) {
	order, err := s.pendingOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	ppOrder, err := s.paypal.GetOrder(ctx, paypalOrderID)
	if err != nil {
		return nil, err
	}
	if ppOrder.Status != PayPalOrderCompleted {
		return nil, ErrPaymentNotCompleted
	}

	// The PayPal order must have been created for this order, for this
	// order's total. A completed capture of some other, cheaper order
	// cannot flip this one.
	value, currency, ok := ppOrder.AmountFor(order.ID.String())
	if !ok {
		return nil, ErrPaymentOrderMismatch
	}
	paid, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, ErrPaymentAmountMismatch
	}
	if utils.MinorUnits(paid) != utils.MinorUnits(order.TotalAmount) ||
		!strings.EqualFold(currency, order.Currency) {
		return nil, ErrPaymentAmountMismatch
	}

	payload, _ := json.Marshal(ppOrder)
	if err := s.markPaid(ctx, order, models.PaymentProviderPayPal, ppOrder.CaptureID(), payload); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *OrderService) pendingOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Preload("Items").
		First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if order.Status != models.OrderStatusPending {
		return nil, ErrOrderNotPending
	}
	return &order, nil
}

// markPaid flips the order and records the gateway transaction, then runs
// best-effort fulfilment. The paid flip is conditional on the order still
// being pending, so a concurrent confirmation cannot apply twice.
func (s *OrderService) markPaid(ctx context.Context, order *models.Order, provider, reference string, payload []byte) error {
	now := time.Now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", order.ID, models.OrderStatusPending).
			Updates(map[string]any{
				"status":            models.OrderStatusPaid,
				"payment_status":    models.PaymentStatusCompleted,
				"payment_method":    provider,
				"payment_reference": reference,
				"paid_at":           &now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrOrderNotPending
		}

		orderID := order.ID
		txn := models.PaymentTransaction{
			Provider:    provider,
			ProviderRef: reference,
			OrderID:     &orderID,
			Amount:      order.TotalAmount,
			Currency:    order.Currency,
			Status:      models.PaymentStatusCompleted,
			Payload:     payload,
		}
		return tx.Create(&txn).Error
	})
	if err != nil {
		return err
	}

	order.Status = models.OrderStatusPaid
	order.PaymentStatus = models.PaymentStatusCompleted
	order.PaymentMethod = provider
	order.PaymentReference = reference
	order.PaidAt = &now

	s.fulfill(ctx, order)

	go s.notifyPaymentSuccess(order, provider, reference)

	return nil
}

// fulfill decrements stock, releases the buyer's reservations and records
// coupon usage. Failures here are logged, never unwound: the order stays
// paid.
func (s *OrderService) fulfill(ctx context.Context, order *models.Order) {
	for _, item := range order.Items {
		if item.ProductVariantID == nil {
			continue
		}
		if err := s.stock.Decrement(ctx, *item.ProductVariantID, item.Quantity); err != nil {
			log.Printf("[Order] stock decrement failed for order %s variant %s: %v",
				order.OrderNumber, *item.ProductVariantID, err)
		}
	}

	if err := s.stock.Release(ctx, order.UserID); err != nil {
		log.Printf("[Order] reservation release failed for order %s: %v", order.OrderNumber, err)
	}

	if order.CouponCode != "" {
		userID := order.UserID
		orderID := order.ID
		if err := s.coupons.RecordUsage(ctx, order.CouponCode, &userID, &orderID, order.DiscountAmount); err != nil {
			log.Printf("[Order] coupon usage record failed for order %s: %v", order.OrderNumber, err)
		}
	}
}

func (s *OrderService) notifyNewOrder(order models.Order) {
	if s.telegram == nil {
		return
	}

	customerName, customerEmail := s.customerInfo(order.UserID)

	items := make([]OrderItemNotification, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemNotification{
			Name:     item.ProductName,
			Quantity: item.Quantity,
			Price:    item.UnitPrice,
		})
	}

	err := s.telegram.NotifyNewOrder(OrderNotification{
		OrderNumber:   order.OrderNumber,
		Items:         items,
		TotalAmount:   order.TotalAmount,
		Currency:      order.Currency,
		CustomerName:  customerName,
		CustomerEmail: customerEmail,
		PaymentMethod: order.PaymentMethod,
		Status:        order.Status,
	})
	if err != nil {
		log.Printf("[Order] telegram notification failed for order %s: %v", order.OrderNumber, err)
	}
}

func (s *OrderService) notifyPaymentSuccess(order *models.Order, provider, reference string) {
	if s.telegram == nil {
		return
	}

	err := s.telegram.NotifyPaymentSuccess(PaymentSuccessNotification{
		OrderNumber: order.OrderNumber,
		Provider:    provider,
		Reference:   reference,
		Amount:      order.TotalAmount,
		Currency:    order.Currency,
	})
	if err != nil {
		log.Printf("[Order] telegram payment notification failed for order %s: %v", order.OrderNumber, err)
	}
}

func (s *OrderService) customerInfo(userID uuid.UUID) (string, string) {
	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		return "unknown", ""
	}
	name := user.DisplayName
	if name == "" {
		name = user.FirstName + " " + user.LastName
	}
	return name, user.Email
}

func generateOrderNumber() string {
	return fmt.Sprintf("VEL-%09d", time.Now().UnixNano()%1000000000)
}
