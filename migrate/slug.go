package migrate

import (
	"strconv"
	"strings"
)

// Slugify lowercases ASCII letters and digits and joins runs of anything
// else with a single dash. It returns "" when nothing is left.
func Slugify(raw string) string {
	var b strings.Builder
	dash := false
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// slugger hands out unique slugs: repeats get a numeric suffix starting
// at 2.
type slugger struct {
	fallback string
	seen     map[string]int
}

func newSlugger(fallback string) *slugger {
	return &slugger{fallback: fallback, seen: make(map[string]int)}
}

func (s *slugger) next(raw string) string {
	base := Slugify(raw)
	if base == "" {
		base = s.fallback
	}
	s.seen[base]++
	if n := s.seen[base]; n > 1 {
		return base + "-" + strconv.Itoa(n)
	}
	return base
}
