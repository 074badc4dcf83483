package chat

import (
	"errors"
	"strings"
	"unicode"
)

// ErrMessageRejected is returned when the content filter blocks a message.
var ErrMessageRejected = errors.New("message rejected")

// Filter screens chat text before it is admitted to a channel. Check
// returns nil for clean text; any error means the message must be dropped,
// including filter-internal failures.
type Filter interface {
	Check(text string) error
}

// WordListFilter rejects messages containing any blocked term. Matching is
// case-insensitive on word boundaries.
type WordListFilter struct {
	blocked map[string]struct{}
}

// NewWordListFilter builds a filter from a blocked-term list.
func NewWordListFilter(terms []string) *WordListFilter {
	blocked := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" {
			blocked[term] = struct{}{}
		}
	}
	return &WordListFilter{blocked: blocked}
}

func (f *WordListFilter) Check(text string) error {
	if len(f.blocked) == 0 {
		return nil
	}
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, word := range words {
		if _, hit := f.blocked[word]; hit {
			return ErrMessageRejected
		}
	}
	return nil
}

// FilterFunc adapts a function to the Filter interface.
type FilterFunc func(text string) error

func (f FilterFunc) Check(text string) error { return f(text) }
