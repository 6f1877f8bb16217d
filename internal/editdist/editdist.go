// Package editdist computes character-level edit distance between strings.
package editdist

// Distance returns the minimum number of single-character insertions,
// deletions, and substitutions needed to transform a into b. It operates on
// Unicode code points, is case-sensitive, and applies no normalization.
// Feedback data is sometimes incomplete, so callers may pass empty strings
// for absent values; Distance("", s) == len([]rune(s)).
func Distance(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)

	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	// Two-row DP over the classic edit distance matrix.
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}
