package textdiff

import (
	"errors"
	"fmt"
)

// Validate checks that the script covers both sequences in order, that inserted and deleted ranges only
// hold words, and that the words inside every Equal op pair up.
func (d DiffResult) Validate() error {
	if err := checkSequence(d.Old); err != nil {
		return fmt.Errorf("check old tokens: %w", err)
	}
	if err := checkSequence(d.New); err != nil {
		return fmt.Errorf("check new tokens: %w", err)
	}

	oi, ni := 0, 0
	for n, op := range d.Ops {
		if op.Old.Start != oi || op.New.Start != ni {
			return fmt.Errorf("op %d starts at (%d, %d), want (%d, %d)", n, op.Old.Start, op.New.Start, oi, ni)
		}
		if op.Old.End < op.Old.Start || op.New.End < op.New.Start ||
			op.Old.End > len(d.Old) || op.New.End > len(d.New) {
			return fmt.Errorf("op %d has out of bounds ranges", n)
		}

		oldSpan := d.Old[op.Old.Start:op.Old.End]
		newSpan := d.New[op.New.Start:op.New.End]

		switch op.Kind {
		case OpDelete:
			if op.New.Len() != 0 || op.Old.Len() == 0 {
				return fmt.Errorf("delete op %d has ranges %v/%v", n, op.Old, op.New)
			}
			if WordCount(oldSpan) != len(oldSpan) {
				return fmt.Errorf("delete op %d holds separators", n)
			}
		case OpInsert:
			if op.Old.Len() != 0 || op.New.Len() == 0 {
				return fmt.Errorf("insert op %d has ranges %v/%v", n, op.Old, op.New)
			}
			if WordCount(newSpan) != len(newSpan) {
				return fmt.Errorf("insert op %d holds separators", n)
			}
		case OpEqual:
			if op.Old.Len() == 0 && op.New.Len() == 0 {
				return fmt.Errorf("equal op %d is empty", n)
			}
			if err := pairWords(oldSpan, newSpan); err != nil {
				return fmt.Errorf("equal op %d: %w", n, err)
			}
		default:
			return fmt.Errorf("op %d has unknown kind %d", n, op.Kind)
		}

		oi, ni = op.Old.End, op.New.End
	}

	if oi != len(d.Old) || ni != len(d.New) {
		return fmt.Errorf("script ends at (%d, %d), want (%d, %d)", oi, ni, len(d.Old), len(d.New))
	}

	return nil
}

func pairWords(oldSpan, newSpan []Token) error {
	var oldWords, newWords []Token
	for _, t := range oldSpan {
		if t.IsWord() {
			oldWords = append(oldWords, t)
		}
	}
	for _, t := range newSpan {
		if t.IsWord() {
			newWords = append(newWords, t)
		}
	}

	if len(oldWords) != len(newWords) {
		return fmt.Errorf("%d old words against %d new words", len(oldWords), len(newWords))
	}

	var errs []error
	for i := range oldWords {
		if oldWords[i].key() != newWords[i].key() {
			errs = append(errs, fmt.Errorf("word %q paired with %q", oldWords[i].Text, newWords[i].Text))
		}
	}

	return errors.Join(errs...)
}
