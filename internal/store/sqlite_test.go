package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/codelens/internal/apperr"
	"github.com/joescharf/codelens/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))

	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "subdir", "test.db"))
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, "subdir"))
	assert.NoError(t, err, "should create parent directory")
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Migrate(context.Background()))
}

// --- Users ---

func TestUserCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := &models.User{Email: "ada@example.com", Username: "ada", PasswordHash: "hash"}
	require.NoError(t, s.CreateUser(ctx, u))
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, models.RoleUser, u.Role)
	assert.False(t, u.CreatedAt.IsZero())

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", got.Email)
	assert.Equal(t, "hash", got.PasswordHash)

	got, err = s.GetUserByEmail(ctx, "ADA@example.com")
	require.NoError(t, err, "email lookup is case-insensitive")
	assert.Equal(t, u.ID, got.ID)

	got, err = s.GetUserByUsername(ctx, "Ada")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = s.GetUser(ctx, "missing")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestCreateUser_Duplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, &models.User{Email: "a@x.io", Username: "a", PasswordHash: "h"}))

	err := s.CreateUser(ctx, &models.User{Email: "a@x.io", Username: "b", PasswordHash: "h"})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	err = s.CreateUser(ctx, &models.User{Email: "b@x.io", Username: "A", PasswordHash: "h"})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestUserStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	st, err := s.UserStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, UserStats{}, st)

	require.NoError(t, s.CreateUser(ctx, &models.User{Email: "a@x.io", Username: "a", PasswordHash: "h", Role: models.RoleAdmin}))
	require.NoError(t, s.CreateUser(ctx, &models.User{Email: "b@x.io", Username: "b", PasswordHash: "h"}))

	st, err = s.UserStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalUsers)
	assert.Equal(t, 1, st.AdminUsers)
}

// --- Documents ---

func TestDocumentLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := &models.Document{Filename: "guide.md"}
	chunks := []string{
		"Goroutines are lightweight threads managed by the Go runtime.",
		"Channels let goroutines communicate safely.",
		"Python uses indentation to delimit blocks.",
	}
	require.NoError(t, s.CreateDocument(ctx, doc, chunks))
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, 3, doc.ChunkCount)
	assert.Greater(t, doc.TotalCharacters, 0)

	err := s.CreateDocument(ctx, &models.Document{Filename: "guide.md"}, []string{"x"})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	docs, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "guide.md", docs[0].Filename)

	nDocs, nChunks, err := s.DocumentStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, nDocs)
	assert.Equal(t, 3, nChunks)

	require.NoError(t, s.DeleteDocumentByFilename(ctx, "guide.md"))
	docs, err = s.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)

	res, err := s.SearchChunks(ctx, "goroutines", 5)
	require.NoError(t, err)
	assert.Empty(t, res, "deleted chunks leave the index")

	err = s.DeleteDocumentByFilename(ctx, "guide.md")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestSearchChunks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateDocument(ctx, &models.Document{Filename: "go.md"}, []string{
		"Goroutines are lightweight threads. Goroutines are cheap to start.",
		"Channels connect goroutines.",
		"Maps are hash tables.",
	}))
	require.NoError(t, s.CreateDocument(ctx, &models.Document{Filename: "py.md"}, []string{
		"Python generators yield values lazily.",
	}))

	res, err := s.SearchChunks(ctx, "How do goroutines work?", 6)
	require.NoError(t, err)
	require.Len(t, res, 2)
	for _, r := range res {
		assert.Equal(t, "go.md", r.Source)
		assert.Contains(t, r.Content, "oroutines")
	}
	assert.GreaterOrEqual(t, res[0].Score, res[1].Score, "best match first")

	res, err = s.SearchChunks(ctx, "goroutines generators", 1)
	require.NoError(t, err)
	assert.Len(t, res, 1)

	res, err = s.SearchChunks(ctx, "?!", 6)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestFTSQuery(t *testing.T) {
	assert.Equal(t, `"goroutines" OR "work"`, ftsQuery("How do goroutines work?"))
	assert.Equal(t, `"near"`, ftsQuery(`"NEAR" AND near`))
	assert.Equal(t, "", ftsQuery("a ? the"))
}

func TestSQLitePath(t *testing.T) {
	assert.Equal(t, "data/app.db", SQLitePath("sqlite://data/app.db"))
	assert.Equal(t, "/var/app.db", SQLitePath("sqlite:///var/app.db"))
	assert.Equal(t, "app.db", SQLitePath("app.db"))
	assert.True(t, IsPostgresURL("postgres://u@h/db"))
	assert.True(t, IsPostgresURL("postgresql://u@h/db"))
	assert.False(t, IsPostgresURL("sqlite://x.db"))
}

func TestOpenUserStore_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.db")
	s, err := OpenUserStore(context.Background(), "sqlite://"+path)
	require.NoError(t, err)
	defer s.Close()

	assert.NoError(t, s.Ping(context.Background()))
	_, err = s.UserStats(context.Background())
	assert.NoError(t, err)
}
