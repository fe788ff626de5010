package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/codelens/internal/apperr"
)

func TestWriteAndRecent(t *testing.T) {
	l, err := Open("", 3)
	require.NoError(t, err)
	defer l.Close()

	for i := 0; i < 5; i++ {
		l.Info(Requests, fmt.Sprintf("req %d", i), nil)
	}
	l.Error("boom", map[string]any{"status": 500})

	got := l.Recent(Requests, 0)
	require.Len(t, got, 3, "ring buffer keeps the newest entries")
	assert.Equal(t, "req 4", got[0].Message)
	assert.Equal(t, "req 2", got[2].Message)

	got = l.Recent(Requests, 1)
	require.Len(t, got, 1)
	assert.Equal(t, "req 4", got[0].Message)

	errs := l.Recent(Errors, 10)
	require.Len(t, errs, 1)
	assert.Equal(t, "error", errs[0].Level)
	assert.Equal(t, Errors, errs[0].Category)

	assert.Empty(t, l.Recent(Reviews, 10))
	assert.Empty(t, l.Recent(Category("nope"), 10))
}

func TestFilesAreJSONL(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir, 10)
	require.NoError(t, err)

	l.Info(Conversations, "turn", map[string]any{"question": "why?"})
	l.Info(Conversations, "turn", map[string]any{"question": "how?"})
	require.NoError(t, l.Close())

	f, err := os.Open(l.Path(Conversations))
	require.NoError(t, err)
	defer f.Close()

	var lines []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		lines = append(lines, e)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "why?", lines[0].Fields["question"])

	for _, c := range Categories {
		_, err := os.Stat(l.Path(c))
		assert.NoError(t, err, c)
	}
}

func TestStats(t *testing.T) {
	l, err := Open("", 10)
	require.NoError(t, err)

	base := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return base.Add(-48 * time.Hour) }
	l.Info(Reviews, "old", nil)
	l.now = func() time.Time { return base.Add(-time.Hour) }
	l.Info(Reviews, "recent", nil)
	l.now = func() time.Time { return base }

	st := l.Stats()
	assert.Equal(t, 2, st.Buffered[Reviews])
	assert.Equal(t, 1, st.Last24h[Reviews])
	assert.Equal(t, 0, st.Buffered[Requests])
}

func TestConcurrentWrites(t *testing.T) {
	l, err := Open(t.TempDir(), 50)
	require.NoError(t, err)
	defer l.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Info(Requests, "r", nil)
		}()
	}
	wg.Wait()
	assert.Len(t, l.Recent(Requests, 0), 20)
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("reviews")
	require.NoError(t, err)
	assert.Equal(t, Reviews, c)

	_, err = ParseCategory("bogus")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestNilLogIsSafe(t *testing.T) {
	var l *Log
	l.Info(Requests, "x", nil)
	assert.Nil(t, l.Recent(Requests, 1))
	assert.NoError(t, l.Close())
}
