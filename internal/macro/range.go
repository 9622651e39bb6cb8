package macro

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Span is a resolved, inclusive 1-based index pair.
type Span struct {
	Start int
	End   int
}

// bound is one side of a range token before resolution: a literal index
// (possibly negative, counting from the end) or the "end" keyword.
type bound struct {
	end bool
	n   int
}

func parseBound(s string) (bound, bool) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "end") {
		return bound{end: true}, true
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return bound{}, false
	}
	return bound{n: n}, true
}

// resolve maps a bound into the 1-based index space of size count.
// Negative indices count from the end (-1 = last).
func (b bound) resolve(count int) int {
	if b.end {
		return count
	}
	if b.n < 0 {
		return count + 1 + b.n
	}
	return b.n
}

// parseToken splits one range token into its bounds. Tokens are either a
// bare index or "A-B"; the separator search walks left to right so that
// negative bounds like "-3--1" split correctly.
func parseToken(tok string) (lo, hi bound, ok bool) {
	tok = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tok), "@"))
	if tok == "" {
		return bound{}, bound{}, false
	}

	if b, bok := parseBound(tok); bok {
		return b, b, true
	}

	for i := 1; i < len(tok)-1; i++ {
		if tok[i] != '-' {
			continue
		}
		left, lok := parseBound(tok[:i])
		right, rok := parseBound(tok[i+1:])
		if lok && rok {
			return left, right, true
		}
	}
	return bound{}, bound{}, false
}

// ResolveSpec resolves a comma-separated range spec against an index space
// of the given size. Malformed tokens are skipped per-token rather than
// aborting the whole spec. Reversed bounds are swapped; a span is dropped
// only when it lies entirely outside [1, count].
func ResolveSpec(spec string, count int) []Span {
	spans := make([]Span, 0, 2)
	for _, tok := range strings.Split(spec, ",") {
		if strings.TrimSpace(tok) == "" {
			continue
		}
		lo, hi, ok := parseToken(tok)
		if !ok {
			log.Debug().Str("token", tok).Msg("macro: skipping malformed range token")
			continue
		}

		a := lo.resolve(count)
		b := hi.resolve(count)
		if a > b {
			a, b = b, a
		}
		if b < 1 || a > count {
			continue
		}
		if a < 1 {
			a = 1
		}
		if b > count {
			b = count
		}
		spans = append(spans, Span{Start: a, End: b})
	}
	return spans
}

// Pick returns the universe elements addressed by spec, in span order,
// joined by blank lines.
func Pick(universe []string, spec string) string {
	spans := ResolveSpec(spec, len(universe))
	parts := make([]string, 0, len(universe))
	for _, sp := range spans {
		for i := sp.Start; i <= sp.End; i++ {
			parts = append(parts, universe[i-1])
		}
	}
	return strings.Join(parts, "\n\n")
}
