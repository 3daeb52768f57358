package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-user-registration/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

type Service interface {
	Register(ctx context.Context, req domain.RegisterUserRequest) (*domain.User, error)
	ResendCode(ctx context.Context, email, password string) (domain.Email, error)
	Activate(ctx context.Context, email, password, code string) (*domain.User, error)
}

// userStore returns domain.ErrNotFound when no user has the email.
type userStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Put(ctx context.Context, u *domain.User) error
	Delete(ctx context.Context, userID string) error
}

type codeStore interface {
	Save(ctx context.Context, email, code string) error
	Get(ctx context.Context, email string) (string, bool, error)
	Delete(ctx context.Context, email string) error
}

type eventPublisher interface {
	Publish(ctx context.Context, e domain.Event) error
	PublishAll(ctx context.Context, events []domain.Event) error
}

type service struct {
	repo      userStore
	codes     codeStore
	publisher eventPublisher
}

type ServiceDeps struct {
	UserRepo  userStore
	CodeStore codeStore
	Publisher eventPublisher
}

func NewService(deps ServiceDeps) Service {
	return &service{
		repo:      deps.UserRepo,
		codes:     deps.CodeStore,
		publisher: deps.Publisher,
	}
}

// Register creates an inactive user, issues a code and publishes
// UserRegistered. If the event cannot be published the user and code are
// removed again so the email can register later.
func (s *service) Register(ctx context.Context, req domain.RegisterUserRequest) (*domain.User, error) {
	email, err := domain.NewEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.GetByEmail(ctx, email.String()); err == nil {
		return nil, fmt.Errorf("email already registered: %w", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := domain.NewUser(email, string(hash))
	if err := s.repo.Put(ctx, u); err != nil {
		return nil, err
	}
	if err := s.issueCode(ctx, email); err != nil {
		s.rollback(ctx, u)
		return nil, err
	}
	if err := s.publisher.PublishAll(ctx, u.CollectEvents()); err != nil {
		s.rollback(ctx, u)
		return nil, fmt.Errorf("publish registration: %w", err)
	}
	return u, nil
}

// ResendCode replaces the user's code and publishes
// UserNewVerificationCodeCreated.
func (s *service) ResendCode(ctx context.Context, email, password string) (domain.Email, error) {
	u, err := s.authenticate(ctx, email, password)
	if err != nil {
		return "", err
	}
	e := domain.Email(u.Email)
	if err := s.issueCode(ctx, e); err != nil {
		return "", err
	}
	if err := s.publisher.Publish(ctx, domain.NewUserNewVerificationCodeCreated(u.UserID, e)); err != nil {
		return "", fmt.Errorf("publish new code: %w", err)
	}
	return e, nil
}

// Activate checks the submitted code against the live one, activates the
// user, consumes the code and publishes UserActivated.
func (s *service) Activate(ctx context.Context, email, password, code string) (*domain.User, error) {
	submitted, err := domain.NewVerificationCode(code)
	if err != nil {
		return nil, err
	}
	u, err := s.authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	stored, ok, err := s.codes.Get(ctx, u.Email)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no live code for %s: %w", u.Email, domain.ErrCodeUnavailable)
	}
	if !domain.VerificationCode(stored).Matches(submitted.String()) {
		return nil, fmt.Errorf("code does not match: %w", domain.ErrCodeMismatch)
	}
	if err := u.Activate(); err != nil {
		return nil, err
	}
	if err := s.repo.Put(ctx, u); err != nil {
		return nil, err
	}
	if err := s.codes.Delete(ctx, u.Email); err != nil {
		slog.Warn("failed to delete verification code after activation", "user_id", u.UserID, "err", err)
	}
	if err := s.publisher.PublishAll(ctx, u.CollectEvents()); err != nil {
		return nil, fmt.Errorf("publish activation: %w", err)
	}
	return u, nil
}

func (s *service) authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	e, err := domain.NewEmail(email)
	if err != nil {
		return nil, err
	}
	u, err := s.repo.GetByEmail(ctx, e.String())
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	return u, nil
}

func (s *service) issueCode(ctx context.Context, email domain.Email) error {
	code, err := domain.GenerateVerificationCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	return s.codes.Save(ctx, email.String(), code.String())
}

// rollback runs detached from cancellation: a client that went away must
// not leave an orphaned user behind.
func (s *service) rollback(ctx context.Context, u *domain.User) {
	ctx = context.WithoutCancel(ctx)
	if err := s.codes.Delete(ctx, u.Email); err != nil {
		slog.Warn("failed to delete code during registration rollback", "user_id", u.UserID, "err", err)
	}
	if err := s.repo.Delete(ctx, u.UserID); err != nil {
		slog.Warn("failed to delete user during registration rollback", "user_id", u.UserID, "err", err)
	}
}
