// Package auth issues and validates signed session tokens for accounts kept in
// the user store.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/joescharf/codelens/internal/apperr"
	"github.com/joescharf/codelens/internal/models"
	"github.com/joescharf/codelens/internal/store"
)

// Token types carried in the "typ" claim.
const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

const (
	DefaultAccessTTL  = 24 * time.Hour
	DefaultRefreshTTL = 30 * 24 * time.Hour
	DefaultIssuer     = "codelens"

	minPasswordLength = 8
	// bcrypt ignores input beyond 72 bytes.
	maxPasswordBytes = 72
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,50}$`)

// Claims are the JWT claims issued by the service.
type Claims struct {
	Username  string      `json:"username"`
	Role      models.Role `json:"role"`
	TokenType string      `json:"typ"`
	jwt.RegisteredClaims
}

// UserID returns the subject claim.
func (c *Claims) UserID() string { return c.Subject }

// IsAdmin reports whether the token carries the admin role.
func (c *Claims) IsAdmin() bool { return c.Role == models.RoleAdmin }

// TokenPair is returned by Login and Refresh.
type TokenPair struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	User         *models.User `json:"user"`
}

// Config holds signing settings.
type Config struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
	BcryptCost int
}

// Service authenticates users and signs tokens with HS256.
type Service struct {
	users store.UserStore
	cfg   Config
	now   func() time.Time
}

// New creates a service. The secret is required.
func New(users store.UserStore, cfg Config) (*Service, error) {
	if cfg.Secret == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{users: users, cfg: cfg, now: time.Now}, nil
}

func validateCredentials(email, username, password string) error {
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return apperr.Validation("invalid email address")
	}
	if !usernamePattern.MatchString(username) {
		return apperr.Validation("username must be 3-50 characters of letters, digits, '.', '_' or '-'")
	}
	if len([]rune(password)) < minPasswordLength {
		return apperr.Validation("password must be at least %d characters", minPasswordLength)
	}
	if len(password) > maxPasswordBytes {
		return apperr.Validation("password must be at most %d bytes", maxPasswordBytes)
	}
	return nil
}

// CreateUser hashes password and stores a new account with the given role.
func (s *Service) CreateUser(ctx context.Context, email, username, password string, role models.Role) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)
	if err := validateCredentials(email, username, password); err != nil {
		return nil, err
	}
	if role != models.RoleAdmin {
		role = models.RoleUser
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &models.User{
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Signup creates a regular user account.
func (s *Service) Signup(ctx context.Context, email, username, password string) (*models.User, error) {
	return s.CreateUser(ctx, email, username, password, models.RoleUser)
}

var errBadCredentials = apperr.New(apperr.KindUnauthorized, "invalid username or password")

// Login checks the password of the account named by identifier (email or
// username) and issues a token pair.
func (s *Service) Login(ctx context.Context, identifier, password string) (*TokenPair, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, errBadCredentials
	}

	var (
		u   *models.User
		err error
	)
	if strings.Contains(identifier, "@") {
		u, err = s.users.GetUserByEmail(ctx, strings.ToLower(identifier))
	} else {
		u, err = s.users.GetUserByUsername(ctx, identifier)
	}
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, errBadCredentials
	}
	return s.issue(u)
}

// Refresh exchanges a valid refresh token for a new pair. The account must
// still exist.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.parse(refreshToken, TokenRefresh)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetUser(ctx, claims.Subject)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, apperr.New(apperr.KindUnauthorized, "account no longer exists")
	}
	if err != nil {
		return nil, err
	}
	return s.issue(u)
}

// Verify validates an access token and returns its claims.
func (s *Service) Verify(token string) (*Claims, error) {
	return s.parse(token, TokenAccess)
}

// User loads the account behind claims.
func (s *Service) User(ctx context.Context, claims *Claims) (*models.User, error) {
	return s.users.GetUser(ctx, claims.Subject)
}

// Stats returns user counts for the admin endpoint.
func (s *Service) Stats(ctx context.Context) (store.UserStats, error) {
	return s.users.UserStats(ctx)
}

func (s *Service) issue(u *models.User) (*TokenPair, error) {
	access, err := s.sign(u, TokenAccess, s.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(u, TokenRefresh, s.cfg.RefreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.cfg.AccessTTL.Seconds()),
		User:         u,
	}, nil
}

func (s *Service) sign(u *models.User, typ string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		Username:  u.Username,
		Role:      u.Role,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *Service) parse(token, wantType string) (*Claims, error) {
	if token == "" {
		return nil, apperr.New(apperr.KindUnauthorized, "missing token")
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return []byte(s.cfg.Secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, apperr.New(apperr.KindUnauthorized, "token expired")
	}
	if err != nil {
		return nil, apperr.New(apperr.KindUnauthorized, "invalid token")
	}
	if claims.TokenType != wantType {
		return nil, apperr.New(apperr.KindUnauthorized, "invalid token type")
	}
	return claims, nil
}

type claimsKey struct{}

// WithClaims returns a context carrying claims.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFrom returns the claims stored by WithClaims.
func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok && c != nil
}
