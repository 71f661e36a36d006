package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"audittrail/internal/summarizer"
	"audittrail/internal/textdiff"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

const (
	colorAuto   = "auto"
	colorAlways = "always"
	colorNever  = "never"
)

// colorEnabled resolves --color. In auto mode colours are used on terminals unless NO_COLOR is set.
func colorEnabled(mode string, out *os.File) (bool, error) {
	switch mode {
	case colorAlways:
		return true, nil
	case colorNever:
		return false, nil
	case colorAuto:
		if _, ok := os.LookupEnv("NO_COLOR"); ok || out == nil {
			return false, nil
		}
		fd := out.Fd()
		return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd), nil
	default:
		return false, fmt.Errorf("invalid --color %q: want %s, %s or %s", mode, colorAuto, colorAlways, colorNever)
	}
}

type renderer struct {
	useColor bool
	inserted *color.Color
	deleted  *color.Color
	label    *color.Color
}

func newRenderer(useColor bool) renderer {
	r := renderer{
		useColor: useColor,
		inserted: color.New(color.FgGreen, color.Bold),
		deleted:  color.New(color.FgRed, color.CrossedOut),
		label:    color.New(color.Faint),
	}

	for _, c := range []*color.Color{r.inserted, r.deleted, r.label} {
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	return r
}

// diff writes the combined text. Without colours changes are marked as [-deleted-] and {+inserted+}.
func (r renderer) diff(w io.Writer, d textdiff.DiffResult) {
	var b strings.Builder

	for _, seg := range d.Segments() {
		switch seg.Kind {
		case textdiff.OpInsert:
			if r.useColor {
				b.WriteString(r.inserted.Sprint(seg.Text))
			} else {
				b.WriteString("{+" + seg.Text + "+}")
			}
		case textdiff.OpDelete:
			if r.useColor {
				b.WriteString(r.deleted.Sprint(seg.Text))
			} else {
				b.WriteString("[-" + seg.Text + "-]")
			}
		default:
			b.WriteString(seg.Text)
		}
	}

	text := b.String()
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}

	_, _ = io.WriteString(w, text)
}

func (r renderer) stats(w io.Writer, d textdiff.DiffResult) {
	_, _ = fmt.Fprintf(w, "%s +%d -%d ~%d =%d\n",
		r.label.Sprint("words:"),
		d.Added(),
		d.Removed(),
		d.Changed(),
		d.Unchanged())
}

func (r renderer) summary(w io.Writer, s summarizer.VersionSummary) {
	_, _ = fmt.Fprintf(w, "%s %s\n", r.label.Sprint("summary:"), s.Text)
}
