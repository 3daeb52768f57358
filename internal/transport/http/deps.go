package http

import (
	"context"

	"github.com/go-user-registration/internal/domain"
)

// UserRepository is the minimal interface the router requires from a user store.
// GetByEmail returns domain.ErrNotFound when the email is not registered.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Put(ctx context.Context, u *domain.User) error
	Delete(ctx context.Context, userID string) error
}

// CodeStore is the minimal interface the router requires from a verification code store.
type CodeStore interface {
	Save(ctx context.Context, email, code string) error
	Get(ctx context.Context, email string) (string, bool, error)
	Delete(ctx context.Context, email string) error
}

// EventPublisher is the minimal interface the router requires from an event publisher.
type EventPublisher interface {
	Publish(ctx context.Context, e domain.Event) error
	PublishAll(ctx context.Context, events []domain.Event) error
}
