package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-user-registration/internal/domain"
)

// CodeReader is the read side of the verification code store.
type CodeReader interface {
	Get(ctx context.Context, email string) (string, bool, error)
}

// Serializer turns domain events into wire envelopes. Codes are looked up at
// serialization time so a message always carries the latest live code.
type Serializer struct {
	codes CodeReader
	log   *slog.Logger
}

func NewSerializer(codes CodeReader, log *slog.Logger) *Serializer {
	if log == nil {
		log = slog.Default()
	}
	return &Serializer{codes: codes, log: log}
}

// Envelope builds the envelope without encoding it.
func (s *Serializer) Envelope(ctx context.Context, e domain.Event) (domain.Envelope, error) {
	env := domain.Envelope{
		EventType:  e.EventType(),
		EventID:    e.EventID(),
		OccurredAt: e.OccurredAt().UTC().Format(time.RFC3339Nano),
	}
	switch ev := e.(type) {
	case domain.UserRegistered:
		p, err := s.withCode(ctx, ev.UserID, ev.Email)
		if err != nil {
			return domain.Envelope{}, err
		}
		env.Payload = p
	case domain.UserNewVerificationCodeCreated:
		p, err := s.withCode(ctx, ev.UserID, ev.Email)
		if err != nil {
			return domain.Envelope{}, err
		}
		env.Payload = p
	case domain.UserActivated:
		env.Payload = domain.EnvelopePayload{UserID: ev.UserID, Email: ev.Email.String()}
	default:
		s.log.Warn("unhandled event type", "event_type", fmt.Sprintf("%T", e), "event_id", e.EventID())
	}
	return env, nil
}

// Serialize returns the JSON envelope for e. Code-bearing events fail with
// domain.ErrCodeUnavailable when no live code exists.
func (s *Serializer) Serialize(ctx context.Context, e domain.Event) ([]byte, error) {
	env, err := s.Envelope(ctx, e)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return b, nil
}

func (s *Serializer) withCode(ctx context.Context, userID string, email domain.Email) (domain.EnvelopePayload, error) {
	code, ok, err := s.codes.Get(ctx, email.String())
	if err != nil {
		if !errors.Is(err, domain.ErrStoreUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}
		return domain.EnvelopePayload{}, fmt.Errorf("lookup code for %s: %w", email, err)
	}
	if !ok {
		return domain.EnvelopePayload{}, fmt.Errorf("code for %s: %w", email, domain.ErrCodeUnavailable)
	}
	return domain.EnvelopePayload{UserID: userID, Email: email.String(), Code: code}, nil
}
