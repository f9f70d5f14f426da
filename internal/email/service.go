package email

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/redmonkez12/locklog/internal/config"
	"github.com/redmonkez12/locklog/internal/logging"
)

// ErrDelivery wraps every failure to hand a message to the SMTP server.
var ErrDelivery = errors.New("email delivery failed")

// Service sends plain-text notifications over SMTP.
type Service struct {
	from   string
	logger *logging.Logger
	// send is DialAndSend on the configured dialer; nil when SMTP is not configured
	send func(m ...*gomail.Message) error
}

func NewService(cfg config.EmailConfig, logger *logging.Logger) *Service {
	s := &Service{from: cfg.From, logger: logger}
	if cfg.SMTPHost != "" {
		dialer := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword)
		s.send = dialer.DialAndSend
	}
	return s
}

// Send delivers one message. gomail has no context support, so the dial runs
// in its own goroutine and ctx only bounds how long the caller waits.
func (s *Service) Send(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return fmt.Errorf("%w: no recipient", ErrDelivery)
	}

	if s.send == nil {
		s.logger.Warn("smtp not configured, email dropped", "email", to, "subject", subject)
		return nil
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	done := make(chan error, 1)
	go func() {
		done <- s.send(msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDelivery, err)
		}
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrDelivery, ctx.Err())
	}

	s.logger.Info("email sent", "email", to, "subject", subject)
	return nil
}
