package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// PayPalOrderCompleted is the only status that allows marking an order paid.
const PayPalOrderCompleted = "COMPLETED"

const paypalTokenLeeway = 30 * time.Second

var ErrPayPalNotConfigured = errors.New("PAYPAL_CLIENT_ID / PAYPAL_CLIENT_SECRET are not configured")

// PayPalService talks to the PayPal Orders v2 API. Access tokens come from
// the OAuth2 client-credentials exchange and are cached until shortly before
// expiry.
type PayPalService struct {
	clientID     string
	clientSecret string
	baseURL      string

	mu          sync.RWMutex
	token       string
	tokenExpiry time.Time
}

func NewPayPalService(clientID, clientSecret, baseURL string) *PayPalService {
	return &PayPalService{
		clientID:     clientID,
		clientSecret: clientSecret,
		baseURL:      strings.TrimRight(baseURL, "/"),
	}
}

// PayPalOrder is the subset of the Orders v2 order object we use.
type PayPalOrder struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		ReferenceID string `json:"reference_id"`
		Amount      struct {
			CurrencyCode string `json:"currency_code"`
			Value        string `json:"value"`
		} `json:"amount"`
		Payments struct {
			Captures []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

// CaptureID returns the id of the first capture, falling back to the PayPal
// order id when the capture list is empty.
func (o *PayPalOrder) CaptureID() string {
	for _, unit := range o.PurchaseUnits {
		for _, capture := range unit.Payments.Captures {
			if capture.ID != "" {
				return capture.ID
			}
		}
	}
	return o.ID
}

// AmountFor returns the amount value and currency of the purchase unit
// carrying the given reference id. Confirmation uses it to bind a PayPal
// order back to the order CreateOrder was called for.
func (o *PayPalOrder) AmountFor(referenceID string) (value, currency string, ok bool) {
	for _, unit := range o.PurchaseUnits {
		if unit.ReferenceID == referenceID {
			return unit.Amount.Value, unit.Amount.CurrencyCode, true
		}
	}
	return "", "", false
}

type paypalTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type paypalErrorBody struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Details []struct {
		Issue       string `json:"issue"`
		Description string `json:"description"`
	} `json:"details"`
}

// CreateOrder creates a PayPal order for the given amount.
func (s *PayPalService) CreateOrder(ctx context.Context, amount float64, currency, referenceID string) (*PayPalOrder, error) {
	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{
			{
				"reference_id": referenceID,
				"amount": map[string]string{
					"currency_code": strings.ToUpper(currency),
					"value":         fmt.Sprintf("%.2f", amount),
				},
			},
		},
	}
	return s.doOrderRequest(ctx, http.MethodPost, "/v2/checkout/orders", payload)
}

// CaptureOrder captures an approved PayPal order server-side.
func (s *PayPalService) CaptureOrder(ctx context.Context, paypalOrderID string) (*PayPalOrder, error) {
	if strings.TrimSpace(paypalOrderID) == "" {
		return nil, &GatewayError{Provider: "paypal", Message: "paypal order id is required"}
	}
	return s.doOrderRequest(ctx, http.MethodPost, "/v2/checkout/orders/"+paypalOrderID+"/capture", struct{}{})
}

// GetOrder fetches the current provider-side state of an order. Checkout
// confirmation re-verifies the capture status through this call rather than
// trusting the client-relayed capture payload.
func (s *PayPalService) GetOrder(ctx context.Context, paypalOrderID string) (*PayPalOrder, error) {
	if strings.TrimSpace(paypalOrderID) == "" {
		return nil, &GatewayError{Provider: "paypal", Message: "paypal order id is required"}
	}
	return s.doOrderRequest(ctx, http.MethodGet, "/v2/checkout/orders/"+paypalOrderID, nil)
}

func (s *PayPalService) doOrderRequest(ctx context.Context, method, path string, body any) (*PayPalOrder, error) {
	resp, err := s.doRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}

	var order PayPalOrder
	if err := json.Unmarshal(resp, &order); err != nil {
		return nil, fmt.Errorf("unmarshal paypal response: %w", err)
	}
	if order.ID == "" {
		return nil, &GatewayError{Provider: "paypal", Message: "paypal response missing order id"}
	}
	return &order, nil
}

// doRequest performs an authenticated PayPal API call, refreshing the token
// and retrying once on 401.
func (s *PayPalService) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	token, err := s.getToken(ctx, false)
	if err != nil {
		return nil, err
	}

	status, respBody, err := s.send(ctx, method, path, body, token)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized {
		token, err = s.getToken(ctx, true)
		if err != nil {
			return nil, err
		}
		status, respBody, err = s.send(ctx, method, path, body, token)
		if err != nil {
			return nil, err
		}
	}

	if status < 200 || status >= 300 {
		return nil, paypalError(status, respBody)
	}
	return respBody, nil
}

func (s *PayPalService) send(ctx context.Context, method, path string, body any, token string) (int, []byte, error) {
	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal paypal request: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("build paypal request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := gatewayHTTPClient.Do(req)
	if err != nil {
		return 0, nil, &GatewayError{Provider: "paypal", Message: "payment service is unavailable", Unavailable: true}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read paypal response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

func (s *PayPalService) getToken(ctx context.Context, force bool) (string, error) {
	if s.clientID == "" || s.clientSecret == "" {
		return "", ErrPayPalNotConfigured
	}

	if !force {
		s.mu.RLock()
		if s.token != "" && time.Now().Add(paypalTokenLeeway).Before(s.tokenExpiry) {
			token := s.token
			s.mu.RUnlock()
			return token, nil
		}
		s.mu.RUnlock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have refreshed while we waited for the lock.
	if !force && s.token != "" && time.Now().Add(paypalTokenLeeway).Before(s.tokenExpiry) {
		return s.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/oauth2/token",
		strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", fmt.Errorf("build paypal auth request: %w", err)
	}
	req.SetBasicAuth(s.clientID, s.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := gatewayHTTPClient.Do(req)
	if err != nil {
		return "", &GatewayError{Provider: "paypal", Message: "payment service is unavailable", Unavailable: true}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("paypal auth failed: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var tokenResp paypalTokenResponse
	if err := json.Unmarshal(respBody, &tokenResp); err != nil {
		return "", fmt.Errorf("unmarshal paypal auth response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", errors.New("paypal auth response missing access_token")
	}

	s.token = tokenResp.AccessToken
	if tokenResp.ExpiresIn > 0 {
		s.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	} else {
		s.tokenExpiry = time.Now().Add(5 * time.Minute)
	}

	return s.token, nil
}

func paypalError(status int, body []byte) error {
	var parsed paypalErrorBody
	_ = json.Unmarshal(body, &parsed)

	message := parsed.Message
	if len(parsed.Details) > 0 && parsed.Details[0].Description != "" {
		message = parsed.Details[0].Description
	}
	if message == "" {
		message = fmt.Sprintf("paypal request failed with status %d", status)
	}

	return &GatewayError{
		Provider:    "paypal",
		Code:        parsed.Name,
		Message:     message,
		Unavailable: status >= 500,
	}
}
