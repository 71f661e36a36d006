package textdiff

import "strings"

// Segment is a run of text in a combined view of both versions.
type Segment struct {
	Kind OpKind
	Text string
}

// Segments flattens the script into a single highlighted text: aligned and inserted text comes from the
// new side, deleted text from the old side. Separators that only exist in the old version are kept so
// that deleted words stay readable.
func (d DiffResult) Segments() []Segment {
	var segments []Segment

	add := func(kind OpKind, text string) {
		if text == "" {
			return
		}
		if n := len(segments); n > 0 && segments[n-1].Kind == kind {
			segments[n-1].Text += text
			return
		}
		segments = append(segments, Segment{Kind: kind, Text: text})
	}

	for _, op := range d.Ops {
		switch op.Kind {
		case OpEqual:
			add(OpEqual, equalText(d.Old[op.Old.Start:op.Old.End], d.New[op.New.Start:op.New.End]))
		case OpInsert:
			add(OpInsert, Join(d.New[op.New.Start:op.New.End]))
		case OpDelete:
			add(OpDelete, Join(d.Old[op.Old.Start:op.Old.End]))
		}
	}

	return segments
}

// equalText renders an Equal op from the new side, falling back to the old separators wherever the new
// side has none between two aligned words.
func equalText(oldSpan, newSpan []Token) string {
	var b strings.Builder
	oi, ni := 0, 0

	for oi < len(oldSpan) || ni < len(newSpan) {
		oldSep, newSep := oi, ni
		for oi < len(oldSpan) && !oldSpan[oi].IsWord() {
			oi++
		}
		for ni < len(newSpan) && !newSpan[ni].IsWord() {
			ni++
		}

		if ni > newSep {
			b.WriteString(Join(newSpan[newSep:ni]))
		} else {
			b.WriteString(Join(oldSpan[oldSep:oi]))
		}

		if ni < len(newSpan) {
			b.WriteString(newSpan[ni].Text)
			ni++
			oi++
		} else if oi < len(oldSpan) {
			b.WriteString(oldSpan[oi].Text)
			oi++
		}
	}

	return b.String()
}

// Words returns the texts of the word tokens touched by ops of the given kind.
func (d DiffResult) Words(kind OpKind) []string {
	var words []string
	for _, op := range d.Ops {
		if op.Kind != kind {
			continue
		}

		span := d.New[op.New.Start:op.New.End]
		if kind == OpDelete {
			span = d.Old[op.Old.Start:op.Old.End]
		}

		for _, t := range span {
			if t.IsWord() {
				words = append(words, t.Text)
			}
		}
	}
	return words
}
