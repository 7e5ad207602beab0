package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
	"github.com/samber/lo"
)

// Moderator masks blacklisted words in room messages before they reach
// the broadcast bus. Matching is case-insensitive and ignores spacing
// and punctuation, so "b a d" still hits the pattern "bad".
type Moderator struct {
	matcher *goahocorasick.Machine
	mask    rune
}

// NewModerator builds the Aho-Corasick automaton from the word list.
// An empty list yields a pass-through moderator.
func NewModerator(words []string, mask rune) (*Moderator, error) {
	m := &Moderator{mask: mask}
	if len(words) == 0 {
		return m, nil
	}

	patterns := lo.FilterMap(lo.Uniq(words), func(word string, _ int) ([]rune, bool) {
		norm, _ := fold([]rune(word))
		return norm, len(norm) > 0
	})
	if len(patterns) == 0 {
		return m, nil
	}

	matcher := new(goahocorasick.Machine)
	if err := matcher.Build(patterns); err != nil {
		return nil, err
	}
	m.matcher = matcher
	return m, nil
}

// Censor replaces every matched span with the mask rune, preserving the
// original text length.
func (m *Moderator) Censor(text string) string {
	if m.matcher == nil {
		return text
	}

	orig := []rune(text)
	norm, origIdx := fold(orig)
	if len(norm) == 0 {
		return text
	}

	spans := m.matcher.MultiPatternSearch(norm, false)
	if len(spans) == 0 {
		return text
	}

	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(origIdx) {
			continue
		}
		for i := origIdx[start]; i <= origIdx[end-1]; i++ {
			orig[i] = m.mask
		}
	}
	return string(orig)
}

// fold lowercases the input and drops separators, keeping a mapping from
// each folded rune back to its original position.
func fold(input []rune) ([]rune, []int) {
	norm := make([]rune, 0, len(input))
	origIdx := make([]int, 0, len(input))
	for i, r := range input {
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			continue
		}
		norm = append(norm, unicode.ToLower(r))
		origIdx = append(origIdx, i)
	}
	return norm, origIdx
}
