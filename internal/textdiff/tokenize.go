package textdiff

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// Tokenize splits text into word, whitespace and punctuation tokens. Concatenating the token texts in
// order yields text again.
func Tokenize(text string) ([]Token, error) {
	if !utf8.ValidString(text) {
		return nil, fmt.Errorf("%w: text is not valid UTF-8", ErrInvalidInput)
	}

	var tokens []Token
	start := 0
	kind := KindWord

	for i, r := range text {
		if isBinaryRune(r) {
			return nil, fmt.Errorf("%w: control character %U at byte %d", ErrInvalidInput, r, i)
		}

		k := classify(r)
		if i == 0 {
			kind = k
			continue
		}
		if k == kind {
			continue
		}

		tokens = append(tokens, Token{Text: text[start:i], Kind: kind, Index: len(tokens)})
		start = i
		kind = k
	}

	if start < len(text) {
		tokens = append(tokens, Token{Text: text[start:], Kind: kind, Index: len(tokens)})
	}

	return tokens, nil
}

func classify(r rune) Kind {
	switch {
	case isWordRune(r):
		return KindWord
	case unicode.IsSpace(r):
		return KindWhitespace
	default:
		return KindPunctuation
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) ||
		unicode.IsNumber(r) ||
		unicode.IsMark(r) ||
		r == '\'' ||
		r == '’'
}

// isBinaryRune reports C0 controls other than the usual whitespace ones.
func isBinaryRune(r rune) bool {
	if r >= 0x20 || r < 0 {
		return r == 0x7f
	}

	switch r {
	case '\t', '\n', '\v', '\f', '\r':
		return false
	default:
		return true
	}
}
