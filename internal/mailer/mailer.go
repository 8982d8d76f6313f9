// Package mailer is the delivery boundary: a thin SMTP wrapper returning a
// delivery result. Transport failures are recorded in the result, not raised;
// only a malformed recipient address is an error, raised before any send.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"creator-outreach/internal/logentry"
)

// ErrInvalidRecipient marks a malformed recipient address. Retrying cannot
// fix it, so it is terminal for the job.
var ErrInvalidRecipient = errors.New("invalid recipient address")

// Result is one delivery attempt's outcome.
type Result struct {
	MessageID string    `json:"message_id"`
	Status    string    `json:"status"` // logentry.StatusSent or StatusFailed
	Timestamp time.Time `json:"timestamp"`
	Err       string    `json:"error,omitempty"`
}

// Sender delivers one email.
type Sender interface {
	Send(ctx context.Context, to, subject, bodyHTML string) (Result, error)
}

// ValidateRecipient reports whether addr parses as a single RFC 5322 address.
func ValidateRecipient(addr string) bool {
	if strings.TrimSpace(addr) == "" {
		return false
	}
	_, err := mail.ParseAddress(addr)
	return err == nil
}

// SMTPConfig configures the SMTP sender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender sends through an SMTP relay via go-mail.
type SMTPSender struct {
	client *gomail.Client
	from   string
	logger *zap.Logger
}

// NewSMTPSender builds the sender. Missing host or sender address is a
// configuration error.
func NewSMTPSender(cfg SMTPConfig, logger *zap.Logger) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("smtp from address is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}
	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return &SMTPSender{client: client, from: cfg.From, logger: logger}, nil
}

// Send delivers one message. A transport failure comes back as a FAILED
// result with a nil error; the caller records it and moves on.
func (s *SMTPSender) Send(ctx context.Context, to, subject, bodyHTML string) (Result, error) {
	if !ValidateRecipient(to) {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidRecipient, to)
	}

	id := "msg_" + uuid.New().String()
	result := Result{MessageID: id, Timestamp: time.Now().UTC()}

	msg := gomail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return Result{}, fmt.Errorf("set from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidRecipient, err)
	}
	msg.SetMessageIDWithValue(id)
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, bodyHTML)

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		s.logger.Warn("delivery failed", zap.String("to", to), zap.Error(err))
		result.Status = logentry.StatusFailed
		result.Err = err.Error()
		return result, nil
	}

	result.Status = logentry.StatusSent
	return result, nil
}
