package summarizer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"audittrail/internal/textdiff"
)

const (
	// EmptyNote is returned for content without any text.
	EmptyNote = "Empty note"

	verbatimMaxRunes    = 100
	sentenceMinRunes    = 10
	fallbackMaxRunes    = 120
	sentenceJoiner      = " … "
	truncationEllipsis  = "..."
	sentenceTerminators = ".!?"

	createdNote = "Created task"
)

// VersionSummary is a short description of a version's content together with the diff it was made for.
type VersionSummary struct {
	Text  string
	Basis textdiff.DiffResult
}

// Summarize shapes content into a short preview. It never returns an empty text.
func Summarize(content string, diff textdiff.DiffResult) VersionSummary {
	return VersionSummary{Text: summaryText(content), Basis: diff}
}

func summaryText(content string) string {
	text := strings.TrimSpace(content)

	if text == "" {
		return EmptyNote
	}

	if utf8.RuneCountInString(text) < verbatimMaxRunes {
		return text
	}

	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return truncateRunes(text, fallbackMaxRunes) + truncationEllipsis
	}

	summary := sentences[0]
	if len(sentences) > 2 {
		summary += sentenceJoiner + sentences[len(sentences)-1]
	}

	return summary
}

// splitSentences splits on runs of terminators and drops fragments of sentenceMinRunes or fewer.
func splitSentences(text string) []string {
	fragments := strings.FieldsFunc(text, func(r rune) bool {
		return strings.ContainsRune(sentenceTerminators, r)
	})

	var sentences []string
	for _, f := range fragments {
		f = strings.TrimSpace(f)
		if utf8.RuneCountInString(f) > sentenceMinRunes {
			sentences = append(sentences, f)
		}
	}

	return sentences
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// DescribeChange is the deterministic change note used when no Summarizer is configured or it fails.
func DescribeChange(diff textdiff.DiffResult, first bool) string {
	if first {
		return createdNote
	}

	added, removed := diff.Added(), diff.Removed()
	if added == 0 && removed == 0 {
		return "Updated content: no word changes"
	}

	return fmt.Sprintf("Updated content: +%d −%d words", added, removed)
}
