package simhash

import (
	"testing"
)

func TestFingerprint_IdenticalTexts(t *testing.T) {
	text := "the quick brown fox jumps over the lazy dog"
	fp1 := Fingerprint(text)
	fp2 := Fingerprint(text)

	if fp1 != fp2 {
		t.Errorf("identical texts produced different fingerprints: %064b vs %064b", fp1, fp2)
	}
}

func TestFingerprint_CaseInsensitive(t *testing.T) {
	if Fingerprint("Example Domain") != Fingerprint("example DOMAIN") {
		t.Error("fingerprint should ignore letter case")
	}
}

func TestFingerprint_SimilarTexts(t *testing.T) {
	text1 := "the quick brown fox jumps over the lazy dog"
	text2 := "the quick brown fox leaps over the lazy dog"

	dist := Distance(Fingerprint(text1), Fingerprint(text2))
	if dist > 10 {
		t.Errorf("similar texts have too large distance: %d", dist)
	}
}

func TestFingerprint_DifferentTexts(t *testing.T) {
	text1 := "the quick brown fox jumps over the lazy dog"
	text2 := "completely unrelated content about quantum physics and mathematics"

	dist := Distance(Fingerprint(text1), Fingerprint(text2))
	if dist < 5 {
		t.Errorf("very different texts have too small distance: %d", dist)
	}
}

func TestFingerprint_Empty(t *testing.T) {
	for _, in := range []string{"", "   \t\n  "} {
		if fp := Fingerprint(in); fp != 0 {
			t.Errorf("Fingerprint(%q) = %064b, want 0", in, fp)
		}
	}
}

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b uint64
		want int
	}{
		{"identical", 0xFF, 0xFF, 0},
		{"all different", 0, ^uint64(0), 64},
		{"one bit", 0, 1, 1},
		{"two bits", 0, 3, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Distance(tt.a, tt.b); got != tt.want {
				t.Errorf("Distance(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestNearDuplicates(t *testing.T) {
	page := "bounded worker pools keep memory usage predictable while a batch of pages is scraped"
	fps := []uint64{
		Fingerprint(page),
		Fingerprint("completely unrelated content about quantum physics and mathematics"),
		0,
		Fingerprint(page),
	}

	pairs := NearDuplicates(fps, DefaultThreshold)
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d: %v", len(pairs), pairs)
	}
	if pairs[0].A != 0 || pairs[0].B != 3 || pairs[0].Distance != 0 {
		t.Errorf("unexpected pair %+v", pairs[0])
	}
}

func TestNearDuplicates_IgnoresEmpty(t *testing.T) {
	if pairs := NearDuplicates([]uint64{0, 0}, DefaultThreshold); len(pairs) != 0 {
		t.Errorf("empty fingerprints should never match, got %v", pairs)
	}
}
