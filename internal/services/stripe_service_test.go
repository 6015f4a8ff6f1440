package services_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/velora/internal/services"
)

func TestStripeCreatePaymentIntent(t *testing.T) {
	var gotAuth, gotAmount, gotCurrency, gotOrderID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/payment_intents" {
			http.Error(w, "unexpected request", http.StatusNotFound)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		gotAmount = r.PostForm.Get("amount")
		gotCurrency = r.PostForm.Get("currency")
		gotOrderID = r.PostForm.Get("metadata[order_id]")
		fmt.Fprint(w, `{"id":"pi_1","status":"requires_payment_method","amount":11300,"currency":"usd","client_secret":"pi_1_secret"}`)
	}))
	defer server.Close()

	svc := services.NewStripeService("sk_test_abc", server.URL)
	intent, err := svc.CreatePaymentIntent(context.Background(), 11300, "USD", map[string]string{"order_id": "ord-1"})
	if err != nil {
		t.Fatal(err)
	}

	if gotAuth != "Bearer sk_test_abc" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotAmount != "11300" || gotCurrency != "usd" || gotOrderID != "ord-1" {
		t.Fatalf("unexpected form values: amount=%s currency=%s order_id=%s", gotAmount, gotCurrency, gotOrderID)
	}
	if intent.ID != "pi_1" || intent.ClientSecret != "pi_1_secret" {
		t.Fatalf("unexpected intent: %+v", intent)
	}
}

func TestStripeErrorMapping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		fmt.Fprint(w, `{"error":{"type":"card_error","code":"card_declined","message":"Your card was declined."}}`)
	}))
	defer server.Close()

	svc := services.NewStripeService("sk_test_abc", server.URL)
	_, err := svc.GetPaymentIntent(context.Background(), "pi_bad")

	var gw *services.GatewayError
	if !errors.As(err, &gw) {
		t.Fatalf("want GatewayError, got %v", err)
	}
	if gw.Code != "card_declined" || gw.Unavailable {
		t.Fatalf("unexpected gateway error: %+v", gw)
	}
	if gw.Message != "your card was declined" {
		t.Fatalf("unexpected message %q", gw.Message)
	}
}

func TestStripeServerErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	svc := services.NewStripeService("sk_test_abc", server.URL)
	_, err := svc.GetPaymentIntent(context.Background(), "pi_1")

	var gw *services.GatewayError
	if !errors.As(err, &gw) {
		t.Fatalf("want GatewayError, got %v", err)
	}
	if !gw.Unavailable {
		t.Fatalf("5xx must be flagged unavailable: %+v", gw)
	}
}

func TestStripeNotConfigured(t *testing.T) {
	svc := services.NewStripeService("", "http://127.0.0.1:0")
	_, err := svc.GetPaymentIntent(context.Background(), "pi_1")
	if !errors.Is(err, services.ErrStripeNotConfigured) {
		t.Fatalf("want ErrStripeNotConfigured, got %v", err)
	}
}
