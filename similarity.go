package shardex

// Similarity scores the association strength between two words. Implementations
// must be symmetric, deterministic for a given pair, and return values in [0,1].
type Similarity func(a, b string) float64

// JaccardSimilarity is the default morphism weight source: the Jaccard
// coefficient over the rune sets of both words.
func JaccardSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	setA := make(map[rune]struct{})
	for _, r := range a {
		setA[r] = struct{}{}
	}
	setB := make(map[rune]struct{})
	for _, r := range b {
		setB[r] = struct{}{}
	}
	intersection := 0
	for r := range setA {
		if _, ok := setB[r]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// frequencyBalance rewards pairs whose access frequencies are close:
// min/max clamped so a zero-frequency word never divides by zero.
func frequencyBalance(a, b uint64) float64 {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	if hi == 0 {
		hi = 1
	}
	return float64(lo) / float64(hi)
}
