package keys

import (
	"cmp"
	"slices"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// closeMatches returns up to n candidates whose similarity ratio with word is at least
// cutoff, best first. Ties are broken by the candidate in reverse lexical order.
func closeMatches(word string, candidates []string, n int, cutoff float64) []string {
	type hit struct {
		key   string
		ratio float64
	}

	m := difflib.NewMatcher(nil, runes(word))
	var hits []hit
	for _, c := range candidates {
		m.SetSeq1(runes(c))
		if m.RealQuickRatio() < cutoff || m.QuickRatio() < cutoff {
			continue
		}
		if r := m.Ratio(); r >= cutoff {
			hits = append(hits, hit{key: c, ratio: r})
		}
	}

	slices.SortFunc(hits, func(a, b hit) int {
		if c := cmp.Compare(b.ratio, a.ratio); c != 0 {
			return c
		}
		return strings.Compare(b.key, a.key)
	})

	out := make([]string, 0, min(n, len(hits)))
	for _, h := range hits[:min(n, len(hits))] {
		out = append(out, h.key)
	}
	return out
}

// runes splits s into one-character elements for the sequence matcher.
func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
