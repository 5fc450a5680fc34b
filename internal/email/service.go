package email

import (
	"fmt"
	"net/smtp"

	"github.com/example/ec-wallet-shop/internal/model"
	"github.com/shopspring/decimal"
)

// sendFunc matches smtp.SendMail.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service handles email sending via SMTP
type Service struct {
	host string
	port string
	from string
	send sendFunc
}

// NewService creates a new email service
func NewService(host, port, from string) *Service {
	return &Service{
		host: host,
		port: port,
		from: from,
		send: smtp.SendMail,
	}
}

// SendOrderConfirmation sends an order confirmation email
func (s *Service) SendOrderConfirmation(to, orderID string, total decimal.Decimal, items []model.OrderItem) error {
	body, err := BuildOrderConfirmationBody(orderID, total, items)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("Order confirmation (order %s)", shortID(orderID))
	return s.deliver(to, subject, body)
}

// SendStatusUpdate tells the customer their order moved to status. Refunded and
// cancelled orders that were paid mention the wallet credit.
func (s *Service) SendStatusUpdate(to, orderID string, status model.OrderStatus, total decimal.Decimal, refunded bool) error {
	body, err := BuildStatusUpdateBody(orderID, status, total, refunded)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("Your order %s is %s", shortID(orderID), status)
	return s.deliver(to, subject, body)
}

func (s *Service) deliver(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	if err := s.send(addr, nil, s.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
