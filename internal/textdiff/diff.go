package textdiff

import (
	"fmt"
)

type OpKind int

const (
	OpEqual OpKind = iota
	OpInsert
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpEqual:
		return "equal"
	case OpInsert:
		return "insert"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Range is a half-open range of token indexes.
type Range struct {
	Start int
	End   int
}

func (r Range) Len() int {
	return r.End - r.Start
}

// EditOp consumes Old tokens from the old sequence and New tokens from the new one.
// Delete ops have an empty New range and Insert ops an empty Old range.
type EditOp struct {
	Kind OpKind
	Old  Range
	New  Range
}

// DiffResult is the edit script between two token sequences. Counts are derived from Ops on demand.
type DiffResult struct {
	Ops []EditOp
	Old []Token
	New []Token
}

// Diff tokenizes both texts and aligns them.
func Diff(oldText, newText string) (DiffResult, error) {
	oldTokens, err := Tokenize(oldText)
	if err != nil {
		return DiffResult{}, fmt.Errorf("tokenize old text: %w", err)
	}

	newTokens, err := Tokenize(newText)
	if err != nil {
		return DiffResult{}, fmt.Errorf("tokenize new text: %w", err)
	}

	return DiffTokens(oldTokens, newTokens, nil)
}

// DiffTokens aligns the word tokens of oldTokens and newTokens. When prev is not nil it must be the result
// that produced oldTokens as its new side.
func DiffTokens(oldTokens, newTokens []Token, prev *DiffResult) (DiffResult, error) {
	if err := checkSequence(oldTokens); err != nil {
		return DiffResult{}, fmt.Errorf("check old tokens: %w", err)
	}
	if err := checkSequence(newTokens); err != nil {
		return DiffResult{}, fmt.Errorf("check new tokens: %w", err)
	}
	if prev != nil {
		if err := checkContinuity(*prev, oldTokens); err != nil {
			return DiffResult{}, err
		}
	}

	oldWords, newWords, oldSyms, newSyms := symbolize(oldTokens, newTokens)
	matches := align(oldSyms, newSyms)

	b := scriptBuilder{old: oldTokens, new: newTokens}
	for _, m := range matches {
		b.gap(oldWords[m.old], newWords[m.new])
		b.push(OpEqual, 1, 1)
	}
	b.gap(len(oldTokens), len(newTokens))

	return DiffResult{Ops: b.ops, Old: oldTokens, New: newTokens}, nil
}

func checkContinuity(prev DiffResult, oldTokens []Token) error {
	if len(prev.New) != len(oldTokens) {
		return fmt.Errorf("%w: previous result ends with %d tokens, old sequence has %d",
			ErrInvalidInput, len(prev.New), len(oldTokens))
	}

	for i := range oldTokens {
		if prev.New[i].Text != oldTokens[i].Text {
			return fmt.Errorf("%w: previous result differs from old sequence at token %d", ErrInvalidInput, i)
		}
	}

	return nil
}

// symbolize maps case-folded words to shared integer symbols and records their token positions.
func symbolize(oldTokens, newTokens []Token) ([]int, []int, []int, []int) {
	ids := make(map[string]int)
	intern := func(tokens []Token) ([]int, []int) {
		var (
			positions []int
			symbols   []int
		)
		for _, t := range tokens {
			if !t.IsWord() {
				continue
			}
			key := t.key()
			id, ok := ids[key]
			if !ok {
				id = len(ids)
				ids[key] = id
			}
			positions = append(positions, t.Index)
			symbols = append(symbols, id)
		}
		return positions, symbols
	}

	oldWords, oldSyms := intern(oldTokens)
	newWords, newSyms := intern(newTokens)

	return oldWords, newWords, oldSyms, newSyms
}

type scriptBuilder struct {
	old []Token
	new []Token
	oi  int
	ni  int
	ops []EditOp
}

// gap emits the unmatched tokens before old position ot and new position nt. Separators present on both
// sides are paired, deletions come before insertions.
func (b *scriptBuilder) gap(ot, nt int) {
	for b.oi < ot || b.ni < nt {
		oldLeft, newLeft := b.oi < ot, b.ni < nt

		switch {
		case oldLeft && newLeft && !b.old[b.oi].IsWord() && !b.new[b.ni].IsWord():
			b.push(OpEqual, 1, 1)
		case oldLeft && b.old[b.oi].IsWord():
			b.push(OpDelete, 1, 0)
		case newLeft && b.new[b.ni].IsWord():
			b.push(OpInsert, 0, 1)
		case oldLeft:
			b.push(OpEqual, 1, 0)
		default:
			b.push(OpEqual, 0, 1)
		}
	}
}

func (b *scriptBuilder) push(kind OpKind, oldN, newN int) {
	oldR := Range{Start: b.oi, End: b.oi + oldN}
	newR := Range{Start: b.ni, End: b.ni + newN}
	b.oi += oldN
	b.ni += newN

	if n := len(b.ops); n > 0 && b.ops[n-1].Kind == kind {
		b.ops[n-1].Old.End = oldR.End
		b.ops[n-1].New.End = newR.End
		return
	}

	b.ops = append(b.ops, EditOp{Kind: kind, Old: oldR, New: newR})
}

// Added is the number of inserted words.
func (d DiffResult) Added() int {
	n := 0
	for _, op := range d.Ops {
		if op.Kind == OpInsert {
			n += WordCount(d.New[op.New.Start:op.New.End])
		}
	}
	return n
}

// Removed is the number of deleted words.
func (d DiffResult) Removed() int {
	n := 0
	for _, op := range d.Ops {
		if op.Kind == OpDelete {
			n += WordCount(d.Old[op.Old.Start:op.Old.End])
		}
	}
	return n
}

// Unchanged is the number of aligned words.
func (d DiffResult) Unchanged() int {
	n := 0
	for _, op := range d.Ops {
		if op.Kind == OpEqual {
			n += WordCount(d.New[op.New.Start:op.New.End])
		}
	}
	return n
}

// Changed counts replaced words: for each run of edits between two aligned words it adds
// min(deleted, inserted).
func (d DiffResult) Changed() int {
	changed, deleted, inserted := 0, 0, 0
	flush := func() {
		changed += min(deleted, inserted)
		deleted, inserted = 0, 0
	}

	for _, op := range d.Ops {
		switch op.Kind {
		case OpDelete:
			deleted += WordCount(d.Old[op.Old.Start:op.Old.End])
		case OpInsert:
			inserted += WordCount(d.New[op.New.Start:op.New.End])
		case OpEqual:
			if WordCount(d.New[op.New.Start:op.New.End]) > 0 {
				flush()
			}
		}
	}
	flush()

	return changed
}

// OldText rebuilds the old text from the script.
func (d DiffResult) OldText() string {
	var out []Token
	for _, op := range d.Ops {
		if op.Kind != OpInsert {
			out = append(out, d.Old[op.Old.Start:op.Old.End]...)
		}
	}
	return Join(out)
}

// NewText rebuilds the new text from the script.
func (d DiffResult) NewText() string {
	var out []Token
	for _, op := range d.Ops {
		if op.Kind != OpDelete {
			out = append(out, d.New[op.New.Start:op.New.End]...)
		}
	}
	return Join(out)
}
