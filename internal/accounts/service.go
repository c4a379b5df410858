// Package accounts provides email/password and Google accounts and the
// tokens that identify them.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"resumebuilder/api/internal/auth"
	"resumebuilder/api/internal/store"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrEmailTaken         = errors.New("user already exists with this email")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrGoogleAccount      = errors.New("this account is linked with Google, please use Google sign-in")
	ErrWrongPassword      = errors.New("old password is incorrect")
	ErrUserNotFound       = errors.New("user not found")
)

var (
	passwordCharset = regexp.MustCompile(`^[A-Za-z\d!@#$%^&*]{8,}$`)
	passwordLetter  = regexp.MustCompile(`[A-Za-z]`)
	passwordDigit   = regexp.MustCompile(`\d`)
	passwordSpecial = regexp.MustCompile(`[!@#$%^&*]`)
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// UserStore defines the storage interface for accounts
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	CreateUser(ctx context.Context, user store.User) (store.User, error)
	UpdateUserProfile(ctx context.Context, email, name, profilePicture string) (store.User, error)
	UpdateUserPassword(ctx context.Context, email, passwordHash string) error
	GetUserByGoogleID(ctx context.Context, googleID string) (store.User, error)
	LinkGoogleAccount(ctx context.Context, email, googleID, profilePicture string) (store.User, error)
}

type Service struct {
	store       UserStore
	tokenSecret []byte
	tokenTTL    time.Duration
}

func NewService(store UserStore, tokenSecret string, tokenTTL time.Duration) *Service {
	return &Service{
		store:       store,
		tokenSecret: []byte(tokenSecret),
		tokenTTL:    tokenTTL,
	}
}

type RegisterRequest struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// Session is a signed-in user and the bearer token issued for it.
type Session struct {
	User  store.User
	Token string
}

func validatePassword(password string) error {
	if !passwordCharset.MatchString(password) ||
		!passwordLetter.MatchString(password) ||
		!passwordDigit.MatchString(password) ||
		!passwordSpecial.MatchString(password) {
		return fmt.Errorf("%w: password must be at least 8 characters long and include one letter, one number, and one special character", ErrInvalidInput)
	}
	return nil
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: invalid email format", ErrInvalidInput)
	}
	return nil
}

// Register creates a local account and signs it in.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if err := validateEmail(req.Email); err != nil {
		return nil, err
	}
	if err := validatePassword(req.Password); err != nil {
		return nil, err
	}
	if req.Role == "" {
		req.Role = RoleUser
	}
	if req.Role != RoleUser && req.Role != RoleAdmin {
		return nil, fmt.Errorf("%w: role must be either 'admin' or 'user'", ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, store.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         req.Role,
		AuthProvider: "local",
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return s.signIn(user)
}

// Login checks the password of a local account.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}
	user, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if user.PasswordHash == "" {
		return nil, ErrGoogleAccount
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.signIn(user)
}

func (s *Service) signIn(user store.User) (*Session, error) {
	token, err := auth.IssueToken(s.tokenSecret, user.Email, user.ID, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: token}, nil
}

// RenewToken issues a fresh token for the account behind a still valid one.
func (s *Service) RenewToken(ctx context.Context, token string) (string, error) {
	claims, err := auth.ParseToken(s.tokenSecret, token)
	if err != nil {
		return "", err
	}
	user, err := s.store.GetUserByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}
	session, err := s.signIn(user)
	if err != nil {
		return "", err
	}
	return session.Token, nil
}

func (s *Service) Profile(ctx context.Context, email string) (store.User, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, ErrUserNotFound
	}
	return user, err
}

func (s *Service) UpdateProfile(ctx context.Context, email, name, profilePicture string) (store.User, error) {
	if strings.TrimSpace(name) == "" {
		return store.User{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	user, err := s.store.UpdateUserProfile(ctx, email, strings.TrimSpace(name), profilePicture)
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, ErrUserNotFound
	}
	return user, err
}

// ChangePassword replaces the password of a local account after checking
// the old one.
func (s *Service) ChangePassword(ctx context.Context, email, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return fmt.Errorf("%w: old and new passwords are required", ErrInvalidInput)
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	user, err := s.Profile(ctx, email)
	if err != nil {
		return err
	}
	if user.PasswordHash == "" {
		return ErrGoogleAccount
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return ErrWrongPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.UpdateUserPassword(ctx, email, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}
