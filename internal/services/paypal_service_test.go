package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/example/velora/internal/services"
)

func TestPayPalCreateOrderCachesToken(t *testing.T) {
	var tokenCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/oauth2/token":
			atomic.AddInt32(&tokenCalls, 1)
			user, pass, _ := r.BasicAuth()
			if user != "client" || pass != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			fmt.Fprint(w, `{"access_token":"tok_1","expires_in":3600}`)
		case "/v2/checkout/orders":
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if body["intent"] != "CAPTURE" {
				http.Error(w, "intent must be CAPTURE", http.StatusBadRequest)
				return
			}
			fmt.Fprint(w, `{"id":"PP1","status":"CREATED"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	svc := services.NewPayPalService("client", "secret", server.URL)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		order, err := svc.CreateOrder(ctx, 113, "usd", "ord-1")
		if err != nil {
			t.Fatal(err)
		}
		if order.ID != "PP1" || order.Status != "CREATED" {
			t.Fatalf("unexpected order: %+v", order)
		}
	}

	if got := atomic.LoadInt32(&tokenCalls); got != 1 {
		t.Fatalf("want 1 token exchange, got %d", got)
	}
}

func TestPayPalRetriesOnceOn401(t *testing.T) {
	var tokenCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/oauth2/token":
			n := atomic.AddInt32(&tokenCalls, 1)
			fmt.Fprintf(w, `{"access_token":"tok_%d","expires_in":3600}`, n)
		case "/v2/checkout/orders/PP1":
			// The first token is treated as stale.
			if r.Header.Get("Authorization") == "Bearer tok_1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			fmt.Fprint(w, `{"id":"PP1","status":"COMPLETED"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	svc := services.NewPayPalService("client", "secret", server.URL)
	order, err := svc.GetOrder(context.Background(), "PP1")
	if err != nil {
		t.Fatal(err)
	}
	if order.Status != "COMPLETED" {
		t.Fatalf("want COMPLETED, got %s", order.Status)
	}
	if got := atomic.LoadInt32(&tokenCalls); got != 2 {
		t.Fatalf("want 2 token exchanges, got %d", got)
	}
}

func TestPayPalErrorMapping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/oauth2/token" {
			fmt.Fprint(w, `{"access_token":"tok_1","expires_in":3600}`)
			return
		}
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"name":"UNPROCESSABLE_ENTITY","message":"The requested action could not be performed.","details":[{"issue":"ORDER_NOT_APPROVED","description":"Payer has not yet approved the Order for payment."}]}`)
	}))
	defer server.Close()

	svc := services.NewPayPalService("client", "secret", server.URL)
	_, err := svc.CaptureOrder(context.Background(), "PP1")

	var gw *services.GatewayError
	if !errors.As(err, &gw) {
		t.Fatalf("want GatewayError, got %v", err)
	}
	if gw.Code != "UNPROCESSABLE_ENTITY" || gw.Unavailable {
		t.Fatalf("unexpected gateway error: %+v", gw)
	}
	if gw.Message != "Payer has not yet approved the Order for payment." {
		t.Fatalf("unexpected message %q", gw.Message)
	}
}

func TestPayPalCaptureID(t *testing.T) {
	var order services.PayPalOrder
	if err := json.Unmarshal([]byte(`{"id":"PP1","status":"COMPLETED","purchase_units":[{"reference_id":"ord-1","amount":{"currency_code":"USD","value":"113.00"},"payments":{"captures":[{"id":"cap_9","status":"COMPLETED"}]}}]}`), &order); err != nil {
		t.Fatal(err)
	}
	if order.CaptureID() != "cap_9" {
		t.Fatalf("want cap_9, got %s", order.CaptureID())
	}

	value, currency, ok := order.AmountFor("ord-1")
	if !ok || value != "113.00" || currency != "USD" {
		t.Fatalf("want 113.00 USD for ord-1, got %s %s %v", value, currency, ok)
	}
	if _, _, ok := order.AmountFor("ord-2"); ok {
		t.Fatal("unknown reference id must not resolve")
	}

	empty := services.PayPalOrder{ID: "PP2"}
	if empty.CaptureID() != "PP2" {
		t.Fatalf("want fallback to order id, got %s", empty.CaptureID())
	}
}

func TestPayPalNotConfigured(t *testing.T) {
	svc := services.NewPayPalService("", "", "http://127.0.0.1:0")
	_, err := svc.GetOrder(context.Background(), "PP1")
	if !errors.Is(err, services.ErrPayPalNotConfigured) {
		t.Fatalf("want ErrPayPalNotConfigured, got %v", err)
	}
}
