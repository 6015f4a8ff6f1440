package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var gatewayHTTPClient = &http.Client{Timeout: 15 * time.Second}

// StripePaymentIntentSucceeded is the only status that allows marking an
// order paid.
const StripePaymentIntentSucceeded = "succeeded"

var ErrStripeNotConfigured = errors.New("STRIPE_SECRET_KEY is not configured")

// GatewayError is a typed upstream provider failure. Unavailable reports
// whether the provider itself was unreachable or erroring, which maps to a
// 503 instead of a 400.
type GatewayError struct {
	Provider    string
	Code        string
	Message     string
	Unavailable bool
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// StripeService talks to the Stripe REST API. Stripe takes form-encoded
// requests and returns JSON.
type StripeService struct {
	secretKey string
	baseURL   string
}

func NewStripeService(secretKey, baseURL string) *StripeService {
	return &StripeService{
		secretKey: secretKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

// StripePaymentIntent is the subset of the PaymentIntent object we use.
type StripePaymentIntent struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Amount       int64             `json:"amount"`
	Currency     string            `json:"currency"`
	ClientSecret string            `json:"client_secret"`
	Metadata     map[string]string `json:"metadata"`
}

type stripeErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreatePaymentIntent creates an intent for the given amount in minor units.
func (s *StripeService) CreatePaymentIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*StripePaymentIntent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amount, 10))
	form.Set("currency", strings.ToLower(currency))
	form.Set("automatic_payment_methods[enabled]", "true")
	for k, v := range metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	return s.doIntentRequest(ctx, http.MethodPost, "/v1/payment_intents", form)
}

// GetPaymentIntent fetches the current provider-side state of an intent.
func (s *StripeService) GetPaymentIntent(ctx context.Context, intentID string) (*StripePaymentIntent, error) {
	if strings.TrimSpace(intentID) == "" {
		return nil, &GatewayError{Provider: "stripe", Message: "payment intent id is required"}
	}
	return s.doIntentRequest(ctx, http.MethodGet, "/v1/payment_intents/"+url.PathEscape(intentID), nil)
}

func (s *StripeService) doIntentRequest(ctx context.Context, method, path string, form url.Values) (*StripePaymentIntent, error) {
	if s.secretKey == "" {
		return nil, ErrStripeNotConfigured
	}

	var bodyReader io.Reader
	if form != nil {
		bodyReader = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("build stripe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := gatewayHTTPClient.Do(req)
	if err != nil {
		return nil, &GatewayError{Provider: "stripe", Message: "payment service is unavailable", Unavailable: true}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read stripe response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, stripeError(resp.StatusCode, respBody)
	}

	var intent StripePaymentIntent
	if err := json.Unmarshal(respBody, &intent); err != nil {
		return nil, fmt.Errorf("unmarshal stripe response: %w", err)
	}
	if intent.ID == "" {
		return nil, &GatewayError{Provider: "stripe", Message: "stripe response missing intent id"}
	}
	return &intent, nil
}

func stripeError(status int, body []byte) error {
	var parsed stripeErrorBody
	_ = json.Unmarshal(body, &parsed)

	message := parsed.Error.Message
	switch parsed.Error.Code {
	case "card_declined":
		message = "your card was declined"
	case "expired_card":
		message = "your card has expired"
	case "incorrect_cvc":
		message = "your card's security code is incorrect"
	}
	if message == "" {
		message = fmt.Sprintf("stripe request failed with status %d", status)
	}

	return &GatewayError{
		Provider:    "stripe",
		Code:        parsed.Error.Code,
		Message:     message,
		Unavailable: status >= 500,
	}
}
