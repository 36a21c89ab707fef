// Package similarity rejects generated text that is too close to recent output.
package similarity

// DefaultThreshold is the similarity above which a candidate is a duplicate.
const DefaultThreshold = 0.6

// Distance returns the Levenshtein edit distance between a and b, counted
// in characters (runes). Insert, delete and substitute each cost 1.
func Distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

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

// Similarity returns 1 - distance/max(len(a), len(b)) in [0, 1]. ok is
// false when both strings are empty, where similarity is undefined.
func Similarity(a, b string) (score float64, ok bool) {
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 0, false
	}
	return 1 - float64(Distance(a, b))/float64(longest), true
}

// Match describes the first stored entry a candidate collided with.
type Match struct {
	Entry string
	Score float64
}

// Guard flags candidates whose similarity to any entry exceeds Threshold.
type Guard struct {
	Threshold float64
}

// NewGuard returns a guard using DefaultThreshold.
func NewGuard() *Guard {
	return &Guard{Threshold: DefaultThreshold}
}

// FindDuplicate returns the first entry the candidate is too similar to.
func (g *Guard) FindDuplicate(candidate string, entries []string) (Match, bool) {
	for _, entry := range entries {
		score, ok := Similarity(candidate, entry)
		if ok && score > g.Threshold {
			return Match{Entry: entry, Score: score}, true
		}
	}
	return Match{}, false
}

// IsDuplicate reports whether candidate is too similar to any entry.
func (g *Guard) IsDuplicate(candidate string, entries []string) bool {
	_, dup := g.FindDuplicate(candidate, entries)
	return dup
}
