package core

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/kerala-agrisage/agrisage/internal/auth"
	"github.com/kerala-agrisage/agrisage/internal/logger"
	"github.com/kerala-agrisage/agrisage/internal/store"
)

const minPasswordLength = 6

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", minPasswordLength)
	ErrInvalidEmail       = errors.New("invalid email address")
)

type SignUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FullName    string `json:"full_name"`
	Phone       string `json:"phone"`
	Location    string `json:"location"`
	PrimaryCrop string `json:"primary_crop"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is what a successful sign-in hands to the client.
type Session struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	ExpiresAt   time.Time      `json:"expires_at"`
	User        *store.User    `json:"user"`
	Profile     *store.Profile `json:"profile,omitempty"`
}

type AccountService struct {
	store    *store.Store
	issuer   *auth.TokenIssuer
	sessions *auth.Sessions
	log      *logger.Logger
}

func NewAccountService(db *store.Store, issuer *auth.TokenIssuer, sessions *auth.Sessions, log *logger.Logger) *AccountService {
	if log == nil {
		log = logger.NewNop()
	}
	return &AccountService{store: db, issuer: issuer, sessions: sessions, log: log.With("service", "account")}
}

// SignUp creates the account with its profile row and signs the user in.
func (s *AccountService) SignUp(ctx context.Context, req SignUpRequest) (*Session, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if len(req.Password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user, profile, err := s.store.CreateUser(ctx, email, hash, store.Profile{
		FullName:    strings.TrimSpace(req.FullName),
		Phone:       strings.TrimSpace(req.Phone),
		Location:    strings.TrimSpace(req.Location),
		PrimaryCrop: strings.TrimSpace(req.PrimaryCrop),
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("User signed up", "user_id", user.ID)
	return s.issue(user, profile)
}

func (s *AccountService) SignIn(ctx context.Context, c Credentials) (*Session, error) {
	email, err := normalizeEmail(c.Email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || !auth.CheckPasswordHash(c.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	profile, err := s.store.GetProfile(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return s.issue(user, profile)
}

// SignOut revokes the session behind claims.
func (s *AccountService) SignOut(ctx context.Context, claims *auth.Claims) error {
	if err := s.sessions.Revoke(ctx, claims); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	s.log.Info("User signed out", "user_id", claims.Subject, "session_id", claims.ID)
	return nil
}

// Authenticate resolves a bearer token to its user. Unknown users and revoked sessions
// are rejected like bad signatures.
func (s *AccountService) Authenticate(ctx context.Context, token string) (*store.User, *auth.Claims, error) {
	claims, err := s.issuer.ValidateJWT(token)
	if err != nil {
		return nil, nil, err
	}
	revoked, err := s.sessions.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check session: %w", err)
	}
	if revoked {
		return nil, nil, auth.ErrRevoked
	}
	user, err := s.store.GetUserByID(ctx, claims.Subject)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, auth.ErrInvalidToken
	}
	return user, claims, nil
}

func (s *AccountService) Profile(ctx context.Context, userID string) (*store.Profile, error) {
	return s.store.GetProfile(ctx, userID)
}

type ProfileUpdate struct {
	FullName    string `json:"full_name"`
	Phone       string `json:"phone"`
	Location    string `json:"location"`
	PrimaryCrop string `json:"primary_crop"`
}

// UpdateProfile saves the settings form. Returns nil, nil when the user has no profile row.
func (s *AccountService) UpdateProfile(ctx context.Context, userID string, u ProfileUpdate) (*store.Profile, error) {
	return s.store.UpdateProfile(ctx, store.Profile{
		UserID:      userID,
		FullName:    strings.TrimSpace(u.FullName),
		Phone:       strings.TrimSpace(u.Phone),
		Location:    strings.TrimSpace(u.Location),
		PrimaryCrop: strings.TrimSpace(u.PrimaryCrop),
	})
}

func (s *AccountService) issue(user *store.User, profile *store.Profile) (*Session, error) {
	token, claims, err := s.issuer.GenerateJWT(user.ID)
	if err != nil {
		return nil, err
	}
	return &Session{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   claims.ExpiresAt.Time,
		User:        user,
		Profile:     profile,
	}, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", missingField("email")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
