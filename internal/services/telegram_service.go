package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
)

// TelegramService sends back-office notifications to the admin chat.
type TelegramService struct {
	botToken    string
	adminChatID string
}

func NewTelegramService(botToken, adminChatID string) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends a message to the specified chat.
func (s *TelegramService) SendMessage(chatID, text string) error {
	if s.botToken == "" {
		log.Println("[Telegram] Bot token not configured")
		return nil
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", s.botToken)

	msg := telegramMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("[Telegram] Failed to send message: %v", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[Telegram] Unexpected status: %d", resp.StatusCode)
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	return nil
}

// SendToAdmin sends a message to the admin chat.
func (s *TelegramService) SendToAdmin(text string) error {
	if s.adminChatID == "" {
		return nil
	}
	return s.SendMessage(s.adminChatID, text)
}

// OrderNotification carries order data for the new-order message.
type OrderNotification struct {
	OrderNumber   string
	Items         []OrderItemNotification
	TotalAmount   float64
	Currency      string
	CustomerName  string
	CustomerEmail string
	PaymentMethod string
	Status        string
}

type OrderItemNotification struct {
	Name     string
	Quantity int
	Price    float64
}

// NotifyNewOrder posts a new-order summary to the admin chat.
func (s *TelegramService) NotifyNewOrder(order OrderNotification) error {
	if s.adminChatID == "" {
		return nil
	}

	var itemsList strings.Builder
	for i, item := range order.Items {
		itemTotal := item.Price * float64(item.Quantity)
		itemsList.WriteString(fmt.Sprintf("%d. <b>%s</b>\n   %d x %.2f %s = %.2f %s\n",
			i+1,
			item.Name,
			item.Quantity,
			item.Price,
			order.Currency,
			itemTotal,
			order.Currency,
		))
	}

	message := fmt.Sprintf(`<b>🛒 NEW ORDER</b>
<b>Order:</b> %s
<b>Customer:</b> %s (%s)
<b>Items:</b>
%s
<b>Total:</b> %.2f %s
<b>Payment:</b> %s
<b>Status:</b> %s`,
		order.OrderNumber,
		order.CustomerName,
		order.CustomerEmail,
		itemsList.String(),
		order.TotalAmount,
		order.Currency,
		order.PaymentMethod,
		order.Status,
	)

	return s.SendToAdmin(strings.TrimSpace(message))
}

// PaymentSuccessNotification carries data for the payment-confirmed message.
type PaymentSuccessNotification struct {
	OrderNumber string
	Provider    string
	Reference   string
	Amount      float64
	Currency    string
}

// NotifyPaymentSuccess posts a payment-confirmed message to the admin chat.
func (s *TelegramService) NotifyPaymentSuccess(payment PaymentSuccessNotification) error {
	if s.adminChatID == "" {
		return nil
	}

	message := fmt.Sprintf(`<b>✅ PAYMENT CONFIRMED</b>
<b>Order:</b> %s
<b>Provider:</b> %s
<b>Reference:</b> %s
<b>Amount:</b> %.2f %s`,
		payment.OrderNumber,
		payment.Provider,
		payment.Reference,
		payment.Amount,
		payment.Currency,
	)

	return s.SendToAdmin(strings.TrimSpace(message))
}
