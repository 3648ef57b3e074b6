package identity

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/congo-pay/custody/internal/custody"
)

var (
	// ErrInvalidPIN covers both malformed and wrong PINs.
	ErrInvalidPIN = errors.New("invalid PIN")
	// ErrDeviceMismatch is returned when logging in from a device other than the bound one.
	ErrDeviceMismatch = errors.New("device mismatch")
)

// Service manages the credentials that establish a caller's account identity.
type Service struct {
	repo Repository
}

// NewService creates a new identity service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Register stores a hashed PIN for a new account identifier.
func (s *Service) Register(ctx context.Context, creds Credentials) (User, error) {
	if err := custody.ValidateAccount(creds.Account); err != nil {
		return User{}, err
	}
	if len(creds.PIN) < 4 {
		return User{}, errors.New("PIN must be at least 4 digits")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.PIN), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	user := User{
		ID:        creds.Account,
		PINHash:   hash,
		DeviceID:  creds.DeviceID,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}

	return user, nil
}

// EnsureRegistered registers creds unless the account already has credentials.
func (s *Service) EnsureRegistered(ctx context.Context, creds Credentials) (User, error) {
	user, err := s.repo.FindByID(ctx, creds.Account)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return User{}, err
	}
	return s.Register(ctx, creds)
}

// Authenticate verifies credentials and device binding.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (User, error) {
	user, err := s.repo.FindByID(ctx, creds.Account)
	if err != nil {
		return User{}, err
	}

	if err := bcrypt.CompareHashAndPassword(user.PINHash, []byte(creds.PIN)); err != nil {
		return User{}, ErrInvalidPIN
	}

	if user.DeviceID == "" {
		if creds.DeviceID != "" {
			if err := s.repo.UpdateDevice(ctx, user.ID, creds.DeviceID); err != nil {
				return User{}, err
			}
			user.DeviceID = creds.DeviceID
		}
	} else if creds.DeviceID != "" && user.DeviceID != creds.DeviceID {
		return User{}, ErrDeviceMismatch
	}

	now := time.Now().UTC()
	if err := s.repo.TouchLogin(ctx, user.ID, now); err != nil {
		return User{}, err
	}
	user.LastLogin = now

	return user, nil
}

// Find returns the credential record of an account.
func (s *Service) Find(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}
