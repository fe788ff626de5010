package store

import (
	"context"
	"strings"

	"github.com/joescharf/codelens/internal/models"
)

// UserStats is the aggregate shown on the admin stats endpoint.
type UserStats struct {
	TotalUsers int `json:"total_users"`
	AdminUsers int `json:"admin_users"`
}

// UserStore persists authentication records.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UserStats(ctx context.Context) (UserStats, error)
	Ping(ctx context.Context) error
	Close() error
}

// DocumentStore persists uploaded documents and retrieves their chunks through
// the full-text index.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *models.Document, chunks []string) error
	GetDocumentByFilename(ctx context.Context, filename string) (*models.Document, error)
	ListDocuments(ctx context.Context) ([]*models.Document, error)
	DeleteDocumentByFilename(ctx context.Context, filename string) error
	SearchChunks(ctx context.Context, query string, limit int) ([]models.RetrievedChunk, error)
	DocumentStats(ctx context.Context) (docs, chunks int, err error)
}

// IsPostgresURL reports whether dsn names a PostgreSQL database.
func IsPostgresURL(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// SQLitePath strips an optional sqlite:// or sqlite:/// scheme from dsn.
func SQLitePath(dsn string) string {
	for _, prefix := range []string{"sqlite:///", "sqlite://", "sqlite:"} {
		if strings.HasPrefix(dsn, prefix) {
			p := strings.TrimPrefix(dsn, prefix)
			if prefix == "sqlite:///" {
				return "/" + p
			}
			return p
		}
	}
	return dsn
}

// OpenUserStore opens the auth store named by dsn and brings its schema up to
// date. PostgreSQL URLs use a pgx pool; anything else is a SQLite file path.
func OpenUserStore(ctx context.Context, dsn string) (UserStore, error) {
	if IsPostgresURL(dsn) {
		s, err := NewPgStore(ctx, dsn, DefaultPgPoolConfig())
		if err != nil {
			return nil, err
		}
		if err := s.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	}

	s, err := NewSQLiteStore(SQLitePath(dsn))
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}
