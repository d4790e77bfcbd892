// Package textsig builds text signatures used by duplicate detection:
// character trigram sets for titles and minhash sketches for descriptions.
package textsig

import (
	"hash/fnv"
	"regexp"
	"sort"
	"strings"
)

var nonWordRegex = regexp.MustCompile(`[^\p{L}\p{N} ]+`)
var multiSpaceRegex = regexp.MustCompile(`\s+`)

// NormalizeText lowercases, strips punctuation and collapses whitespace.
func NormalizeText(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonWordRegex.ReplaceAllString(s, " ")
	s = multiSpaceRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Trigrams returns the sorted set of character trigrams of the normalized
// input, padded the way pg_trgm pads word boundaries.
func Trigrams(s string) []string {
	s = NormalizeText(s)
	if s == "" {
		return nil
	}

	set := make(map[string]struct{})
	for _, word := range strings.Fields(s) {
		padded := "  " + word + " "
		runes := []rune(padded)
		for i := 0; i+3 <= len(runes); i++ {
			set[string(runes[i:i+3])] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// TrigramString renders the trigram set as a single space-joined string, the
// storable form kept on DedupeSignature.
func TrigramString(s string) string {
	return strings.Join(Trigrams(s), " ")
}

// Similarity computes the Jaccard similarity of two trigram sets given in
// their storable form. Mirrors pg_trgm's similarity().
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	setA := strings.Fields(a)
	setB := make(map[string]struct{})
	for _, t := range strings.Fields(b) {
		setB[t] = struct{}{}
	}

	var inter int
	seen := make(map[string]struct{}, len(setA))
	for _, t := range setA {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := setB[t]; ok {
			inter++
		}
	}

	union := len(seen) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// MinhashSize is the number of hash slots in a description sketch.
const MinhashSize = 32

// Minhash computes a fixed-size sketch over the word shingles of the input.
func Minhash(s string) []uint32 {
	words := strings.Fields(NormalizeText(s))
	sketch := make([]uint32, MinhashSize)
	for i := range sketch {
		sketch[i] = ^uint32(0)
	}
	if len(words) == 0 {
		return sketch
	}

	for i := 0; i+2 <= len(words); i++ {
		shingle := words[i] + " " + words[i+1]
		for slot := 0; slot < MinhashSize; slot++ {
			h := fnv.New32a()
			h.Write([]byte{byte(slot)})
			h.Write([]byte(shingle))
			if v := h.Sum32(); v < sketch[slot] {
				sketch[slot] = v
			}
		}
	}
	return sketch
}

// MinhashSimilarity estimates Jaccard similarity from two sketches.
func MinhashSimilarity(a, b []uint32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var same int
	for i := range a {
		if a[i] == b[i] {
			same++
		}
	}
	return float64(same) / float64(len(a))
}
