// Package textdiff tokenizes text and computes word-level edit scripts between two versions of a document.
//
// Only word tokens take part in the alignment. Whitespace and punctuation are carried along in Equal
// operations so that both versions can be rebuilt from the script, but they are never counted.
// Every function in this package is pure and safe for concurrent use.
package textdiff

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidInput is returned for non-text input and malformed token sequences.
var ErrInvalidInput = errors.New("invalid input")

type Kind int

const (
	KindWord Kind = iota
	KindWhitespace
	KindPunctuation
)

func (k Kind) String() string {
	switch k {
	case KindWord:
		return "word"
	case KindWhitespace:
		return "whitespace"
	case KindPunctuation:
		return "punctuation"
	default:
		return "unknown"
	}
}

// Token is a single span of the tokenized text. Index is the token's position in its sequence.
type Token struct {
	Text  string
	Kind  Kind
	Index int
}

// IsWord reports whether the token takes part in alignment.
func (t Token) IsWord() bool {
	return t.Kind == KindWord
}

func (t Token) key() string {
	return strings.ToLower(t.Text)
}

// Join concatenates token texts in order.
func Join(tokens []Token) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteString(t.Text)
	}
	return b.String()
}

// WordCount returns the number of word tokens.
func WordCount(tokens []Token) int {
	n := 0
	for _, t := range tokens {
		if t.IsWord() {
			n++
		}
	}
	return n
}

// checkSequence verifies that token indexes start at zero and increase by one.
func checkSequence(tokens []Token) error {
	for i, t := range tokens {
		if t.Index != i {
			return fmt.Errorf("%w: token %d has index %d", ErrInvalidInput, i, t.Index)
		}
		if t.Text == "" {
			return fmt.Errorf("%w: token %d is empty", ErrInvalidInput, i)
		}
	}
	return nil
}
