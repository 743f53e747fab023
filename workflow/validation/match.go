package validation

import "sort"

// NearestMatches returns up to limit candidates within an edit distance
// of max(2, len(needle)/2), closest first and then by name.
func NearestMatches(needle string, candidates []string, limit int) []string {
	if needle == "" || len(candidates) == 0 || limit <= 0 {
		return nil
	}

	threshold := len(needle) / 2
	if threshold < 2 {
		threshold = 2
	}

	type scored struct {
		distance  int
		candidate string
	}
	all := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		all = append(all, scored{distance: levenshtein(needle, c), candidate: c})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].distance != all[j].distance {
			return all[i].distance < all[j].distance
		}
		return all[i].candidate < all[j].candidate
	})

	var out []string
	for _, s := range all {
		if s.distance > threshold || len(out) == limit {
			break
		}
		out = append(out, s.candidate)
	}
	return out
}

// levenshtein computes the byte-wise edit distance between a and b.
func levenshtein(a, b string) int {
	prev := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 0; i < len(a); i++ {
		cur := make([]int, len(b)+1)
		cur[0] = i + 1
		for j := 0; j < len(b); j++ {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}
			cur[j+1] = min(cur[j]+1, prev[j+1]+1, prev[j]+cost)
		}
		prev = cur
	}
	return prev[len(b)]
}
