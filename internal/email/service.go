package email

import (
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/example/storefront/internal/domain/order"
	"github.com/example/storefront/internal/export"
)

var ErrNoRecipient = errors.New("email: no recipient")

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service handles email sending via SMTP
type Service struct {
	host     string
	port     string
	from     string
	sendMail sendFunc
}

// NewService creates a new email service
func NewService(host, port, from string) *Service {
	return &Service{
		host:     host,
		port:     port,
		from:     from,
		sendMail: smtp.SendMail,
	}
}

// SendOrderReceipt mails the HTML receipt for o to the given address.
func (s *Service) SendOrderReceipt(to string, o order.Order) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return ErrNoRecipient
	}
	body, err := export.OrderHTML(o)
	if err != nil {
		return err
	}
	return s.send(to, ReceiptSubject(o.ID), body)
}

func (s *Service) send(to, subject, body string) error {
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	if err := s.sendMail(addr, nil, s.from, []string{to}, BuildMessage(s.from, to, subject, body)); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}
	return nil
}
