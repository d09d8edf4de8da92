// Package moderation censors blacklisted words in message content
// before it is persisted. Matching is an Aho-Corasick scan over a
// normalized view of the text, so leet-speak and punctuation tricks
// still hit the patterns while the original spacing is preserved.
package moderation

import (
	"bufio"
	"io/fs"
	"strings"
	"unicode"

	apperrors "dm-lab/errors"

	goahocorasick "github.com/anknown/ahocorasick"
)

type Moderator struct {
	matcher     *goahocorasick.Machine
	replacement rune
}

// NewModerator builds the automaton from the given word list. Words are
// normalized the same way the scanned text is.
func NewModerator(words []string, replacement rune) (*Moderator, error) {
	if len(words) == 0 {
		return nil, apperrors.ErrEmptyWords
	}
	patterns := make([][]rune, 0, len(words))
	for _, word := range words {
		// A word made of pure noise normalizes to nothing and cannot
		// be a pattern.
		if pattern := normalize([]rune(word)); len(pattern) > 0 {
			patterns = append(patterns, pattern)
		}
	}
	if len(patterns) == 0 {
		return nil, apperrors.ErrEmptyWords
	}

	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return nil, err
	}
	return &Moderator{matcher: machine, replacement: replacement}, nil
}

// LoadWords reads one word per line from every .txt file of the
// directory, typically one file per language.
func LoadWords(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	unique := make(map[string]struct{})
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		data, err := fs.ReadFile(fsys, dir+"/"+entry.Name())
		if err != nil {
			return nil, err
		}
		// Scanner copes with \n and \r\n line endings alike.
		scanner := bufio.NewScanner(strings.NewReader(string(data)))
		for scanner.Scan() {
			if word := strings.TrimSpace(scanner.Text()); word != "" {
				unique[strings.ToLower(word)] = struct{}{}
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}

	words := make([]string, 0, len(unique))
	for word := range unique {
		words = append(words, word)
	}
	if len(words) == 0 {
		return nil, apperrors.ErrEmptyWords
	}
	return words, nil
}

// Censor replaces every matched pattern with the replacement rune and
// returns the matched (normalized) words. Unmatched input comes back
// untouched.
func (m *Moderator) Censor(original string) (string, []string) {
	origRunes := []rune(original)

	// Normalized view plus a mapping back to original rune positions,
	// so the replacement lands on the characters the user typed.
	norm := make([]rune, 0, len(origRunes))
	origIdx := make([]int, 0, len(origRunes))
	for i, r := range origRunes {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		norm = append(norm, unicode.ToLower(clean))
		origIdx = append(origIdx, i)
	}
	if len(norm) == 0 {
		return original, nil
	}

	spans := m.matcher.MultiPatternSearch(norm, false)
	if len(spans) == 0 {
		return original, nil
	}

	var found []string
	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(origIdx) {
			continue
		}
		found = append(found, string(span.Word))
		for i := origIdx[start]; i <= origIdx[end-1]; i++ {
			origRunes[i] = m.replacement
		}
	}
	return string(origRunes), found
}

// normalize lowers a pattern, maps leet-speak back to letters and
// strips noise runes, matching the view Censor scans.
func normalize(pattern []rune) []rune {
	out := make([]rune, 0, len(pattern))
	for _, r := range pattern {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		out = append(out, unicode.ToLower(clean))
	}
	return out
}

// simplifyRune maps common leet-speak characters back to letters.
func simplifyRune(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
