package rag

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSplitter_Validation(t *testing.T) {
	_, err := NewSplitter(0, 0)
	assert.Error(t, err)
	_, err = NewSplitter(100, 100)
	assert.Error(t, err)
	_, err = NewSplitter(100, -1)
	assert.Error(t, err)

	s, err := NewSplitter(1000, 100)
	require.NoError(t, err)
	assert.Equal(t, DefaultSeparators, s.Separators)
}

func TestSplit_ShortTextIsOneChunk(t *testing.T) {
	s, _ := NewSplitter(1000, 100)
	got := s.Split("  Hello world.\n\nSecond paragraph.  ")
	assert.Equal(t, []string{"Hello world.\n\nSecond paragraph."}, got)
}

func TestSplit_Empty(t *testing.T) {
	s, _ := NewSplitter(10, 2)
	assert.Empty(t, s.Split(""))
	assert.Empty(t, s.Split("   \n\n  "))
}

func TestSplit_RespectsSizeAndParagraphs(t *testing.T) {
	s, _ := NewSplitter(30, 0)
	text := "First paragraph here.\n\nSecond paragraph here.\n\nThird one."
	got := s.Split(text)
	assert.Equal(t, []string{"First paragraph here.", "Second paragraph here.", "Third one."}, got)
}

func TestSplit_Overlap(t *testing.T) {
	s, _ := NewSplitter(20, 10)
	got := s.Split("aaa bbb ccc ddd eee fff ggg hhh")
	require.NotEmpty(t, got)
	for _, c := range got {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 20, c)
	}
	assert.Equal(t, []string{"aaa bbb ccc ddd eee", "ddd eee fff ggg hhh"}, got)
	// consecutive chunks share at least one word
	for i := 1; i < len(got); i++ {
		assert.Contains(t, strings.Fields(got[i-1]), strings.Fields(got[i])[0], "chunk %d", i)
	}
}

func TestSplit_LongWordIsHardSplit(t *testing.T) {
	s, _ := NewSplitter(10, 0)
	word := strings.Repeat("x", 25)
	got := s.Split(word)
	assert.Equal(t, []string{strings.Repeat("x", 10), strings.Repeat("x", 10), strings.Repeat("x", 5)}, got)
}

func TestSplit_CountsRunes(t *testing.T) {
	s, _ := NewSplitter(5, 0)
	got := s.Split("ééééé ààààà")
	assert.Equal(t, []string{"ééééé", "ààààà"}, got)
}

func TestSplit_LargeDocument(t *testing.T) {
	s, _ := NewSplitter(1000, 100)
	para := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 40)
	text := strings.Repeat(para+"\n\n", 5)

	got := s.Split(text)
	require.Greater(t, len(got), 5)
	for _, c := range got {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 1000)
		assert.NotEmpty(t, strings.TrimSpace(c))
	}
}
