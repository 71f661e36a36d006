package textdiff

import (
	"slices"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// maxMatchPairs bounds the number of candidate (old, new) pairs handed to the threshold alignment. Larger
// problems go to the Myers bisection, which is linear in memory.
const maxMatchPairs = 1 << 20

//nolint:gochecknoglobals // Lowered by tests to exercise the split path.
var matchPairBudget = maxMatchPairs

// match pairs a word position in the old sequence with one in the new sequence.
type match struct {
	old int
	new int
}

// align returns a longest common subsequence of a and b as strictly increasing pairs. Within the pair
// budget, among alignments of equal length each length keeps the smallest old position, so repeated words
// are matched against their earliest unmatched occurrence in a.
func align(a, b []int) []match {
	return alignRange(a, b, 0, 0)
}

func alignRange(a, b []int, aOff, bOff int) []match {
	var out []match

	p := 0
	for p < len(a) && p < len(b) && a[p] == b[p] {
		out = append(out, match{old: aOff + p, new: bOff + p})
		p++
	}
	a, b = a[p:], b[p:]
	aOff, bOff = aOff+p, bOff+p

	if len(a) == 0 || len(b) == 0 {
		return out
	}

	if countPairs(a, b) <= matchPairBudget {
		return append(out, thresholdLCS(a, b, aOff, bOff)...)
	}

	s := 0
	for s < len(a) && s < len(b) && a[len(a)-1-s] == b[len(b)-1-s] {
		s++
	}
	a, b = a[:len(a)-s], b[:len(b)-s]

	out = append(out, bisectMatches(a, b, aOff, bOff)...)

	for k := s; k > 0; k-- {
		out = append(out, match{old: aOff + len(a) + s - k, new: bOff + len(b) + s - k})
	}

	return out
}

func countPairs(a, b []int) int {
	counts := make(map[int]int, len(a))
	for _, s := range a {
		counts[s]++
	}

	n := 0
	for _, s := range b {
		n += counts[s]
	}
	return n
}

// thresholdLCS is the Hunt–Szymanski formulation: thresh[k] holds the smallest old position that ends a
// common subsequence of length k+1 seen so far.
func thresholdLCS(a, b []int, aOff, bOff int) []match {
	type node struct {
		old  int
		new  int
		prev int
	}

	occ := make(map[int][]int, len(a))
	for i, s := range a {
		occ[s] = append(occ[s], i)
	}

	var (
		nodes  []node
		thresh []int
		links  []int
	)

	for j, s := range b {
		positions := occ[s]

		// Descending order keeps one new position from extending its own chain.
		for x := len(positions) - 1; x >= 0; x-- {
			i := positions[x]

			k, found := slices.BinarySearch(thresh, i)
			if found {
				continue
			}

			prev := -1
			if k > 0 {
				prev = links[k-1]
			}
			nodes = append(nodes, node{old: i, new: j, prev: prev})

			if k == len(thresh) {
				thresh = append(thresh, i)
				links = append(links, len(nodes)-1)
			} else {
				thresh[k] = i
				links[k] = len(nodes) - 1
			}
		}
	}

	if len(links) == 0 {
		return nil
	}

	out := make([]match, len(links))
	for n, k := links[len(links)-1], len(links)-1; n >= 0; n, k = nodes[n].prev, k-1 {
		out[k] = match{old: aOff + nodes[n].old, new: bOff + nodes[n].new}
	}
	return out
}

// bisectMatches aligns a and b with the Myers bisection of diffmatchpatch. Each symbol becomes one rune so
// that the library works on words instead of characters. With no timeout the result is a longest common
// subsequence, so the counts match those of thresholdLCS.
func bisectMatches(a, b []int, aOff, bOff int) []match {
	ra, okA := symbolRunes(a)
	rb, okB := symbolRunes(b)
	if !okA || !okB {
		return thresholdLCS(a, b, aOff, bOff)
	}

	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0

	var out []match
	i, j := 0, 0
	for _, d := range dmp.DiffMainRunes(ra, rb, false) {
		n := utf8.RuneCountInString(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			for k := range n {
				out = append(out, match{old: aOff + i + k, new: bOff + j + k})
			}
			i += n
			j += n
		case diffmatchpatch.DiffDelete:
			i += n
		case diffmatchpatch.DiffInsert:
			j += n
		}
	}

	return out
}

// symbolRunes maps symbols onto valid runes, skipping the surrogate block.
func symbolRunes(symbols []int) ([]rune, bool) {
	const surrogateMin, surrogateSpan = 0xD800, 0x800

	out := make([]rune, len(symbols))
	for i, s := range symbols {
		r := rune(s)
		if r >= surrogateMin {
			r += surrogateSpan
		}
		if r > utf8.MaxRune {
			return nil, false
		}
		out[i] = r
	}
	return out, true
}
