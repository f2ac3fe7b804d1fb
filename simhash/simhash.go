package simhash

import (
	"hash/fnv"
	"math/bits"
	"strings"
)

// DefaultThreshold is the Hamming distance at or below which two page texts
// are reported as near-duplicates.
const DefaultThreshold = 3

// Fingerprint computes a 64-bit SimHash of the given text.
// Words are lowercased and hashed with FNV-64a, then accumulated into a bit
// vector.
func Fingerprint(text string) uint64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}

	var vector [64]int

	for _, word := range words {
		h := fnv.New64a()
		h.Write([]byte(strings.ToLower(word)))
		hash := h.Sum64()

		for i := 0; i < 64; i++ {
			if hash&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}

	var fingerprint uint64
	for i := 0; i < 64; i++ {
		if vector[i] > 0 {
			fingerprint |= 1 << uint(i)
		}
	}

	return fingerprint
}

// Distance returns the Hamming distance between two SimHash fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Similar returns true if the Hamming distance between two fingerprints
// is less than or equal to the threshold.
func Similar(a, b uint64, threshold int) bool {
	return Distance(a, b) <= threshold
}

// Pair is two indexes into a fingerprint slice and their distance.
type Pair struct {
	A, B     int
	Distance int
}

// NearDuplicates returns every pair i < j whose fingerprints are Similar.
// Zero fingerprints (empty text) never match.
func NearDuplicates(fps []uint64, threshold int) []Pair {
	var pairs []Pair
	for i := 0; i < len(fps); i++ {
		if fps[i] == 0 {
			continue
		}
		for j := i + 1; j < len(fps); j++ {
			if fps[j] == 0 {
				continue
			}
			if d := Distance(fps[i], fps[j]); d <= threshold {
				pairs = append(pairs, Pair{A: i, B: j, Distance: d})
			}
		}
	}
	return pairs
}
