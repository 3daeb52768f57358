package domain

import (
	"time"

	"github.com/go-user-registration/internal/pkg/id"
)

// Wire names of the event kinds.
const (
	EventUserRegistered                 = "UserRegistered"
	EventUserNewVerificationCodeCreated = "UserNewVerificationCodeCreated"
	EventUserActivated                  = "UserActivated"
)

// Event is the closed set of user domain events. Only the types in this file
// implement it; consumers switch on the concrete type and keep a default arm.
type Event interface {
	EventID() string
	OccurredAt() time.Time
	EventType() string
	isUserEvent()
}

// EventMeta carries the identity every event gets at creation.
type EventMeta struct {
	ID string
	At time.Time
}

func newEventMeta() EventMeta {
	return EventMeta{ID: id.New(), At: time.Now().UTC()}
}

func (m EventMeta) EventID() string       { return m.ID }
func (m EventMeta) OccurredAt() time.Time { return m.At }

// UserRegistered is raised when an account is created. The verification code
// is not part of the event; it is looked up at delivery time.
type UserRegistered struct {
	EventMeta
	UserID string
	Email  Email
}

func NewUserRegistered(userID string, email Email) UserRegistered {
	return UserRegistered{EventMeta: newEventMeta(), UserID: userID, Email: email}
}

func (UserRegistered) EventType() string { return EventUserRegistered }
func (UserRegistered) isUserEvent()      {}

// UserNewVerificationCodeCreated is raised when a code is reissued.
type UserNewVerificationCodeCreated struct {
	EventMeta
	UserID string
	Email  Email
}

func NewUserNewVerificationCodeCreated(userID string, email Email) UserNewVerificationCodeCreated {
	return UserNewVerificationCodeCreated{EventMeta: newEventMeta(), UserID: userID, Email: email}
}

func (UserNewVerificationCodeCreated) EventType() string { return EventUserNewVerificationCodeCreated }
func (UserNewVerificationCodeCreated) isUserEvent()      {}

// UserActivated is raised when the account is activated.
type UserActivated struct {
	EventMeta
	UserID string
	Email  Email
}

func NewUserActivated(userID string, email Email) UserActivated {
	return UserActivated{EventMeta: newEventMeta(), UserID: userID, Email: email}
}

func (UserActivated) EventType() string { return EventUserActivated }
func (UserActivated) isUserEvent()      {}
