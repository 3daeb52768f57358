package delivery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-user-registration/internal/domain"
)

// Mailer sends plain-text emails.
type Mailer interface {
	SendEmail(to, subject, body string) error
}

// Handler is the consumer-side action for user events. Without a mailer it
// only logs, codes included, which is how local setups read them.
type Handler struct {
	mail Mailer
}

func NewHandler(mail Mailer) *Handler {
	return &Handler{mail: mail}
}

func (h *Handler) Handle(_ context.Context, env domain.Envelope) error {
	p := env.Payload
	slog.Debug("envelope received", "event_type", env.EventType, "event_id", env.EventID)
	switch env.EventType {
	case domain.EventUserRegistered, domain.EventUserNewVerificationCodeCreated:
		if p.Email == "" || p.Code == "" {
			slog.Warn("unhandled event type", "event_type", env.EventType, "event_id", env.EventID, "reason", "missing email or code")
			return nil
		}
		if h.mail == nil {
			slog.Info("verification code issued", "event_type", env.EventType, "event_id", env.EventID, "email", p.Email, "code", p.Code)
			return nil
		}
		body := fmt.Sprintf("Your verification code is %s.\r\nUse it to activate your account before it expires.", p.Code)
		if err := h.mail.SendEmail(p.Email, "Your verification code", body); err != nil {
			return fmt.Errorf("send code email to %s: %w", p.Email, err)
		}
		slog.Info("verification email sent", "event_id", env.EventID, "email", p.Email)
	case domain.EventUserActivated:
		slog.Info("user activated", "event_id", env.EventID, "user_id", p.UserID, "email", p.Email)
		if h.mail == nil || p.Email == "" {
			return nil
		}
		if err := h.mail.SendEmail(p.Email, "Your account is active", "Your account has been activated."); err != nil {
			return fmt.Errorf("send activation email to %s: %w", p.Email, err)
		}
	default:
		slog.Warn("unhandled event type", "event_type", env.EventType, "event_id", env.EventID)
	}
	return nil
}
