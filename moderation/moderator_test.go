package moderation

import (
	"testing"
	"testing/fstest"

	apperrors "dm-lab/errors"

	"github.com/stretchr/testify/require"
)

const replacementChar = '*'

// TestModerator_Censor
// The dictionary uses specific words to avoid partial collisions (e.g., "he" inside "The")
func TestModerator_Censor(t *testing.T) {
	req := require.New(t)
	dictionary := []string{"badger", "snake", "mushroom"}
	mod, err := NewModerator(dictionary, replacementChar)
	req.NoError(err)

	tests := []struct {
		name     string
		input    string
		expected string
		words    []string
	}{
		{
			name:     "Simple word and space preservation",
			input:    "The badger is here",
			expected: "The ****** is here",
			words:    []string{"badger"},
		},
		{
			name:     "Multiple occurrences and preserved spacing",
			input:    "badger badger badger",
			expected: "****** ****** ******",
			words:    []string{"badger", "badger", "badger"},
		},
		{
			name: "Leet speak and internal punctuation",
			// B (index 8) . 4 . d . g . € r (index 17) -> 10 characters
			input:    "Look at B.4.d.g.€r !",
			expected: "Look at ********** !",
			words:    []string{"badger"},
		},
		{
			name:     "Uppercase and extreme noise",
			input:    "S-N-A-K-E is a B.A.D.G.E.R",
			expected: "********* is a ***********",
			words:    []string{"snake", "badger"},
		},
		{
			name:     "Accents and special characters (UTF-8)",
			input:    "Un été avec un badger",
			expected: "Un été avec un ******",
			words:    []string{"badger"},
		},
		{
			name:     "Word adjacent to trailing punctuation",
			input:    "I love badger!",
			expected: "I love ******!",
			words:    []string{"badger"},
		},
		{
			name:     "Nothing to censor",
			input:    "dm-lab is amazing",
			expected: "dm-lab is amazing",
			words:    nil,
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
			words:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, words := mod.Censor(tt.input)
			req.Equal(tt.expected, content, "test=%s,", tt.name)
			req.Equal(tt.words, words, "expected=%s,words=%s", tt.expected, words)
		})
	}
}

func TestModerator_CornerCases(t *testing.T) {
	req := require.New(t)

	// Given real noise and not Leet Speak associated
	dictionary := []string{"...", ",,,", "", "badger"}

	mod, err := NewModerator(dictionary, replacementChar)
	req.NoError(err)

	// Then the sentence is censored
	input := "The badger is safe"
	expected := "The ****** is safe"
	content, words := mod.Censor(input)
	req.Equal(expected, content)
	req.Equal([]string{"badger"}, words)

	// Then real noise is uncensored
	input = "Hello ..."
	expected = "Hello ..."
	content, words = mod.Censor(input)
	req.Equal(expected, content)
	req.Nil(words)
}

func TestModerator_RejectsEmptyDictionary(t *testing.T) {
	req := require.New(t)

	_, err := NewModerator(nil, replacementChar)
	req.ErrorIs(err, apperrors.ErrEmptyWords)

	// A dictionary of pure noise is as empty as no dictionary at all
	_, err = NewModerator([]string{"...", " "}, replacementChar)
	req.ErrorIs(err, apperrors.ErrEmptyWords)
}

func TestLoadWords(t *testing.T) {
	req := require.New(t)

	fsys := fstest.MapFS{
		"censored/en.txt":     {Data: []byte("badger\nSnake\r\n\nbadger\n")},
		"censored/fr.txt":     {Data: []byte("blaireau\n")},
		"censored/notes.md":   {Data: []byte("ignored")},
		"censored/empty.txt":  {Data: []byte("\n\n")},
		"censored/sub/x.txt":  {Data: []byte("nested is not scanned")},
		"unrelated/other.txt": {Data: []byte("wrong directory")},
	}

	words, err := LoadWords(fsys, "censored")
	req.NoError(err)

	// Lowercased, deduplicated, .txt files of the directory only
	req.ElementsMatch([]string{"badger", "snake", "blaireau"}, words)
}

func TestLoadWords_EmptyDirectory(t *testing.T) {
	req := require.New(t)

	fsys := fstest.MapFS{
		"censored/empty.txt": {Data: []byte("")},
	}

	_, err := LoadWords(fsys, "censored")
	req.ErrorIs(err, apperrors.ErrEmptyWords)
}
