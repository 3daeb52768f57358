package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// User is the registration aggregate. It records domain events as its state
// changes; callers drain them with CollectEvents after persisting.
type User struct {
	UserID       string    `json:"id" dynamodbav:"user_id"`
	Email        string    `json:"email" dynamodbav:"email"`
	PasswordHash string    `json:"-" dynamodbav:"password_hash"`
	IsActive     bool      `json:"is_active" dynamodbav:"is_active"`
	CreatedAt    time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt    time.Time `json:"updated" dynamodbav:"updated_at"`

	events []Event
}

// NewUser creates an inactive user and records UserRegistered.
func NewUser(email Email, passwordHash string) *User {
	now := time.Now().UTC()
	u := &User{
		UserID:       uuid.NewString(),
		Email:        email.String(),
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	u.record(NewUserRegistered(u.UserID, email))
	return u
}

// Activate marks the account active and records UserActivated.
func (u *User) Activate() error {
	if u.IsActive {
		return fmt.Errorf("user is already active: %w", ErrConflict)
	}
	u.IsActive = true
	u.UpdatedAt = time.Now().UTC()
	u.record(NewUserActivated(u.UserID, Email(u.Email)))
	return nil
}

// CollectEvents returns the pending events and clears them.
func (u *User) CollectEvents() []Event {
	events := u.events
	u.events = nil
	return events
}

func (u *User) record(e Event) {
	u.events = append(u.events, e)
}

type RegisterUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=64"`
}

type ActivateUserRequest struct {
	Code string `json:"code" validate:"required,len=4,numeric"`
}
