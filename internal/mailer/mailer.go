package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"account_service/internal/config"
	"account_service/internal/models"
	"account_service/internal/rabbitmq"

	"gopkg.in/gomail.v2"
)

var ErrNoRecipient = errors.New("message has no recipient")

// Dialer sends fully built messages. *gomail.Dialer satisfies it.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type Mailer struct {
	from   string
	dialer Dialer
}

func New(cfg config.SMTP) *Mailer {
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}

	return &Mailer{
		from:   from,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

// NewWithDialer builds a Mailer on top of an existing dialer.
func NewWithDialer(from string, d Dialer) *Mailer {
	return &Mailer{from: from, dialer: d}
}

// SendMessage delivers msg over SMTP. ctx is only checked before dialing;
// gomail has no cancellation.
func (m *Mailer) SendMessage(ctx context.Context, msg models.Message) error {
	const op = "mailer.SendMessage"

	if msg.Email == "" {
		return fmt.Errorf("%s: %w", op, ErrNoRecipient)
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := m.dialer.DialAndSend(m.build(msg)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (m *Mailer) build(msg models.Message) *gomail.Message {
	gm := gomail.NewMessage()
	gm.SetHeader("From", m.from)
	gm.SetHeader("To", msg.Email)
	gm.SetHeader("Subject", msg.Subject)

	gm.SetBody("text/plain", msg.Link)
	if msg.HTML != "" {
		gm.AddAlternative("text/html", msg.HTML)
	}

	return gm
}

// Handler turns queue deliveries into sent mail. Undecodable or
// unaddressed messages are discarded; SMTP failures are retried.
func (m *Mailer) Handler(log *slog.Logger) rabbitmq.Handler {
	return func(ctx context.Context, body []byte) error {
		const op = "mailer.Handler"

		var msg models.Message
		if err := json.Unmarshal(body, &msg); err != nil {
			return fmt.Errorf("%s: %w: %w", op, rabbitmq.ErrDiscard, err)
		}

		if msg.Email == "" {
			return fmt.Errorf("%s: %w: %w", op, rabbitmq.ErrDiscard, ErrNoRecipient)
		}

		if err := m.SendMessage(ctx, msg); err != nil {
			return err
		}

		log.Info("message sent successfully", slog.String("purpose", msg.Purpose))

		return nil
	}
}
