package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/joescharf/codelens/internal/apperr"
	"github.com/joescharf/codelens/internal/models"
	"github.com/joescharf/codelens/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	svc, err := New(s, Config{Secret: "test-secret", BcryptCost: bcrypt.MinCost})
	require.NoError(t, err)
	return svc
}

func TestNew_RequiresSecret(t *testing.T) {
	_, err := New(nil, Config{})
	assert.Error(t, err)
}

func TestSignup_Validation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		username string
		password string
	}{
		{"bad email", "not-an-email", "ada", "password123"},
		{"short username", "ada@example.com", "ad", "password123"},
		{"username charset", "ada@example.com", "ada lovelace", "password123"},
		{"short password", "ada@example.com", "ada", "short"},
		{"long password", "ada@example.com", "ada", string(make([]byte, 73))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Signup(ctx, tt.email, tt.username, tt.password)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}
}

func TestSignupAndLogin(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	u, err := svc.Signup(ctx, "Ada@Example.com", "ada", "password123")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, models.RoleUser, u.Role)
	assert.NotEqual(t, "password123", u.PasswordHash)

	_, err = svc.Signup(ctx, "ada@example.com", "ada2", "password123")
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	for _, id := range []string{"ada", "ADA@example.com"} {
		pair, err := svc.Login(ctx, id, "password123")
		require.NoError(t, err, id)
		assert.Equal(t, "bearer", pair.TokenType)
		assert.Equal(t, int64(DefaultAccessTTL.Seconds()), pair.ExpiresIn)
		assert.Equal(t, u.ID, pair.User.ID)

		claims, err := svc.Verify(pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, u.ID, claims.UserID())
		assert.Equal(t, "ada", claims.Username)
		assert.False(t, claims.IsAdmin())
	}
}

func TestLogin_Failures(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	_, err := svc.Signup(ctx, "ada@example.com", "ada", "password123")
	require.NoError(t, err)

	for _, tc := range [][2]string{
		{"ada", "wrong-password"},
		{"nobody", "password123"},
		{"", "password123"},
		{"ada", ""},
	} {
		_, err := svc.Login(ctx, tc[0], tc[1])
		assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err), tc)
		assert.Equal(t, "invalid username or password", apperr.PublicMessage(err))
	}
}

func TestRefresh(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	_, err := svc.CreateUser(ctx, "root@example.com", "root", "password123", models.RoleAdmin)
	require.NoError(t, err)

	pair, err := svc.Login(ctx, "root", "password123")
	require.NoError(t, err)

	next, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	claims, err := svc.Verify(next.AccessToken)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin())

	_, err = svc.Refresh(ctx, pair.AccessToken)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err), "access token is not a refresh token")

	_, err = svc.Verify(pair.RefreshToken)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err), "refresh token is not an access token")
}

func TestVerify_Rejects(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	_, err := svc.Signup(ctx, "ada@example.com", "ada", "password123")
	require.NoError(t, err)
	pair, err := svc.Login(ctx, "ada", "password123")
	require.NoError(t, err)

	t.Run("empty", func(t *testing.T) {
		_, err := svc.Verify("")
		assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.Verify("not.a.jwt")
		assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
	})

	t.Run("other secret", func(t *testing.T) {
		other, err := New(svc.users, Config{Secret: "other", BcryptCost: bcrypt.MinCost})
		require.NoError(t, err)
		_, err = other.Verify(pair.AccessToken)
		assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
	})

	t.Run("expired", func(t *testing.T) {
		svc.now = func() time.Time { return time.Now().Add(DefaultAccessTTL + time.Minute) }
		defer func() { svc.now = time.Now }()
		_, err := svc.Verify(pair.AccessToken)
		assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
		assert.Equal(t, "token expired", apperr.PublicMessage(err))
	})

	t.Run("none algorithm", func(t *testing.T) {
		tok := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
			TokenType: TokenAccess,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "x",
				Issuer:    DefaultIssuer,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		signed, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = svc.Verify(signed)
		assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
	})
}

func TestClaimsContext(t *testing.T) {
	_, ok := ClaimsFrom(context.Background())
	assert.False(t, ok)

	c := &Claims{Username: "ada"}
	got, ok := ClaimsFrom(WithClaims(context.Background(), c))
	require.True(t, ok)
	assert.Same(t, c, got)
}
