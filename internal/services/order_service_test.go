package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/velora/internal/models"
	"github.com/example/velora/internal/services"
	"github.com/example/velora/internal/utils"
)

func newOrderService(db *gorm.DB, stripe *services.StripeService, paypal *services.PayPalService) *services.OrderService {
	stock := services.NewStockService(db, time.Minute)
	coupons := services.NewCouponService(db)
	return services.NewOrderService(db, stock, coupons, stripe, paypal, nil)
}

func TestCreatePendingInsufficientStock(t *testing.T) {
	db := memdb(t)
	svc := newOrderService(db, nil, nil)
	ctx := context.Background()

	product, variant := seedVariant(t, db, "jacket", 80, 2)

	_, err := svc.CreatePending(ctx, uuid.New(), services.CreateOrderInput{
		Items: []services.OrderItemInput{
			{ProductID: product.ID, ProductVariantID: variant.ID, Quantity: 3},
		},
		PaymentMethod: "stripe",
	})

	var insufficient *services.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("want InsufficientStockError, got %v", err)
	}
	if insufficient.Requested != 3 || insufficient.Available != 2 {
		t.Fatalf("want requested 3 available 2, got %+v", insufficient)
	}

	// The rejected request must leave nothing behind.
	var orders, items int64
	if err := db.Model(&models.Order{}).Count(&orders).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Model(&models.OrderItem{}).Count(&items).Error; err != nil {
		t.Fatal(err)
	}
	if orders != 0 || items != 0 {
		t.Fatalf("want no rows, got %d orders and %d items", orders, items)
	}
}

func TestCreatePendingWithCoupon(t *testing.T) {
	db := memdb(t)
	svc := newOrderService(db, nil, nil)
	ctx := context.Background()

	product, variant := seedVariant(t, db, "boots", 60, 5)
	coupon := models.Coupon{
		Code:          "SAVE10",
		DiscountType:  models.DiscountTypePercentage,
		DiscountValue: 10,
		IsActive:      true,
	}
	if err := db.Create(&coupon).Error; err != nil {
		t.Fatal(err)
	}

	order, err := svc.CreatePending(ctx, uuid.New(), services.CreateOrderInput{
		Items: []services.OrderItemInput{
			{ProductID: product.ID, ProductVariantID: variant.ID, Quantity: 2},
		},
		PaymentMethod: "stripe",
		ShippingFee:   5,
		CouponCode:    "save10",
	})
	if err != nil {
		t.Fatal(err)
	}

	if order.Subtotal != 120 {
		t.Fatalf("want subtotal 120, got %v", order.Subtotal)
	}
	if order.DiscountAmount != 12 {
		t.Fatalf("want discount 12, got %v", order.DiscountAmount)
	}
	if order.TotalAmount != 113 {
		t.Fatalf("want total 113, got %v", order.TotalAmount)
	}
	if order.Status != models.OrderStatusPending {
		t.Fatalf("want status pending, got %s", order.Status)
	}
	if order.OrderNumber == "" {
		t.Fatal("order number must be set")
	}
	if len(order.Items) != 1 || order.Items[0].LineTotal != 120 {
		t.Fatalf("unexpected items: %+v", order.Items)
	}

	// Creating the pending order is not a coupon consumption.
	var reloaded models.Coupon
	if err := db.Where("code = ?", "SAVE10").First(&reloaded).Error; err != nil {
		t.Fatal(err)
	}
	if reloaded.UsedCount != 0 {
		t.Fatalf("pending order must not consume coupon, used_count = %d", reloaded.UsedCount)
	}

	// Pending orders never touch stock.
	var v models.ProductVariant
	if err := db.First(&v, "id = ?", variant.ID).Error; err != nil {
		t.Fatal(err)
	}
	if v.Stock != 5 {
		t.Fatalf("want stock untouched at 5, got %d", v.Stock)
	}
}

func TestConfirmStripePayment(t *testing.T) {
	db := memdb(t)
	ctx := context.Background()

	product, variant := seedVariant(t, db, "scarf", 40, 5)
	coupon := models.Coupon{
		Code:          "SAVE10",
		DiscountType:  models.DiscountTypePercentage,
		DiscountValue: 10,
		UsageLimit:    5,
		IsActive:      true,
	}
	if err := db.Create(&coupon).Error; err != nil {
		t.Fatal(err)
	}

	intents := map[string]map[string]any{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/v1/payment_intents/")
		intent, ok := intents[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":{"type":"invalid_request_error","message":"No such payment_intent"}}`)
			return
		}
		json.NewEncoder(w).Encode(intent)
	}))
	defer server.Close()

	stripe := services.NewStripeService("sk_test_123", server.URL)
	svc := newOrderService(db, stripe, nil)

	userID := uuid.New()
	order, err := svc.CreatePending(ctx, userID, services.CreateOrderInput{
		Items: []services.OrderItemInput{
			{ProductID: product.ID, ProductVariantID: variant.ID, Quantity: 2},
		},
		PaymentMethod: "stripe",
		CouponCode:    "SAVE10",
	})
	if err != nil {
		t.Fatal(err)
	}

	wantAmount := utils.MinorUnits(order.TotalAmount)

	intents["pi_pending"] = map[string]any{
		"id": "pi_pending", "status": "requires_payment_method", "amount": wantAmount, "currency": "usd",
	}
	if _, err := svc.ConfirmStripePayment(ctx, order.ID, "pi_pending"); !errors.Is(err, services.ErrPaymentNotCompleted) {
		t.Fatalf("want ErrPaymentNotCompleted, got %v", err)
	}

	intents["pi_wrong"] = map[string]any{
		"id": "pi_wrong", "status": "succeeded", "amount": wantAmount - 100, "currency": "usd",
	}
	if _, err := svc.ConfirmStripePayment(ctx, order.ID, "pi_wrong"); !errors.Is(err, services.ErrPaymentAmountMismatch) {
		t.Fatalf("want ErrPaymentAmountMismatch, got %v", err)
	}

	intents["pi_ok"] = map[string]any{
		"id": "pi_ok", "status": "succeeded", "amount": wantAmount, "currency": "usd",
	}
	confirmed, err := svc.ConfirmStripePayment(ctx, order.ID, "pi_ok")
	if err != nil {
		t.Fatal(err)
	}
	if confirmed.Status != models.OrderStatusPaid {
		t.Fatalf("want status paid, got %s", confirmed.Status)
	}
	if confirmed.PaymentReference != "pi_ok" {
		t.Fatalf("want reference pi_ok, got %s", confirmed.PaymentReference)
	}
	if confirmed.PaidAt == nil {
		t.Fatal("paid_at must be set")
	}

	// Fulfilment: stock down, coupon consumed, transaction recorded.
	var v models.ProductVariant
	if err := db.First(&v, "id = ?", variant.ID).Error; err != nil {
		t.Fatal(err)
	}
	if v.Stock != 3 {
		t.Fatalf("want stock 3 after fulfilment, got %d", v.Stock)
	}

	var reloaded models.Coupon
	if err := db.Where("code = ?", "SAVE10").First(&reloaded).Error; err != nil {
		t.Fatal(err)
	}
	if reloaded.UsedCount != 1 {
		t.Fatalf("want used_count 1, got %d", reloaded.UsedCount)
	}

	var txns int64
	if err := db.Model(&models.PaymentTransaction{}).
		Where("provider = ? AND provider_ref = ?", models.PaymentProviderStripe, "pi_ok").
		Count(&txns).Error; err != nil {
		t.Fatal(err)
	}
	if txns != 1 {
		t.Fatalf("want 1 payment transaction, got %d", txns)
	}

	// A second confirmation cannot apply twice.
	if _, err := svc.ConfirmStripePayment(ctx, order.ID, "pi_ok"); !errors.Is(err, services.ErrOrderNotPending) {
		t.Fatalf("want ErrOrderNotPending, got %v", err)
	}
}

func TestConfirmPayPalPayment(t *testing.T) {
	db := memdb(t)
	ctx := context.Background()

	product, variant := seedVariant(t, db, "belt", 30, 4)

	type paypalStub struct {
		status string
		refID  string
		value  string
	}
	orders := map[string]paypalStub{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/oauth2/token" {
			fmt.Fprint(w, `{"access_token":"tok_1","expires_in":3600}`)
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/v2/checkout/orders/")
		stub, ok := orders[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"name":"RESOURCE_NOT_FOUND","message":"order not found"}`)
			return
		}
		fmt.Fprintf(w, `{"id":%q,"status":%q,"purchase_units":[{"reference_id":%q,"amount":{"currency_code":"USD","value":%q},"payments":{"captures":[{"id":"cap_1","status":%q}]}}]}`,
			id, stub.status, stub.refID, stub.value, stub.status)
	}))
	defer server.Close()

	paypal := services.NewPayPalService("client", "secret", server.URL)
	svc := newOrderService(db, nil, paypal)

	order, err := svc.CreatePending(ctx, uuid.New(), services.CreateOrderInput{
		Items: []services.OrderItemInput{
			{ProductID: product.ID, ProductVariantID: variant.ID, Quantity: 1},
		},
		PaymentMethod: "paypal",
	})
	if err != nil {
		t.Fatal(err)
	}

	refID := order.ID.String()

	orders["PP1"] = paypalStub{status: "APPROVED", refID: refID, value: "30.00"}
	if _, err := svc.ConfirmPayPalPayment(ctx, order.ID, "PP1"); !errors.Is(err, services.ErrPaymentNotCompleted) {
		t.Fatalf("want ErrPaymentNotCompleted, got %v", err)
	}

	// A completed capture of a cheaper PayPal order cannot flip this one.
	orders["PP1"] = paypalStub{status: "COMPLETED", refID: refID, value: "1.00"}
	if _, err := svc.ConfirmPayPalPayment(ctx, order.ID, "PP1"); !errors.Is(err, services.ErrPaymentAmountMismatch) {
		t.Fatalf("want ErrPaymentAmountMismatch, got %v", err)
	}

	// Nor can a capture that was created for some other order entirely.
	orders["PP1"] = paypalStub{status: "COMPLETED", refID: uuid.New().String(), value: "30.00"}
	if _, err := svc.ConfirmPayPalPayment(ctx, order.ID, "PP1"); !errors.Is(err, services.ErrPaymentOrderMismatch) {
		t.Fatalf("want ErrPaymentOrderMismatch, got %v", err)
	}

	orders["PP1"] = paypalStub{status: "COMPLETED", refID: refID, value: "30.00"}
	confirmed, err := svc.ConfirmPayPalPayment(ctx, order.ID, "PP1")
	if err != nil {
		t.Fatal(err)
	}
	if confirmed.Status != models.OrderStatusPaid {
		t.Fatalf("want status paid, got %s", confirmed.Status)
	}
	if confirmed.PaymentReference != "cap_1" {
		t.Fatalf("want capture id as reference, got %s", confirmed.PaymentReference)
	}

	var v models.ProductVariant
	if err := db.First(&v, "id = ?", variant.ID).Error; err != nil {
		t.Fatal(err)
	}
	if v.Stock != 3 {
		t.Fatalf("want stock 3 after fulfilment, got %d", v.Stock)
	}
}

func TestConfirmPaymentUnknownOrder(t *testing.T) {
	db := memdb(t)
	svc := newOrderService(db, services.NewStripeService("sk", "http://127.0.0.1:0"), nil)

	_, err := svc.ConfirmStripePayment(context.Background(), uuid.New(), "pi_x")
	if !errors.Is(err, services.ErrOrderNotFound) {
		t.Fatalf("want ErrOrderNotFound, got %v", err)
	}
}
