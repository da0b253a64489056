package search

import (
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"
	"golang.org/x/text/unicode/norm"
)

const (
	unbaseScale = 0.95
	partialLong = 0.6
	partialNear = 0.9
)

// Ratio is the normalised InDel similarity of a and b, 0..100:
// 100 * 2 * LCS / (len(a) + len(b)), measured in runes.
func Ratio(a, b string) float64 {
	return ratioRunes([]rune(a), []rune(b))
}

func ratioRunes(a, b []rune) float64 {
	lensum := len(a) + len(b)
	if lensum == 0 {
		return 100
	}
	lcs := edlib.LCS(string(a), string(b))
	return 100 * float64(2*lcs) / float64(lensum)
}

// PartialRatio scores the best alignment of the shorter string against
// every window of the longer one.
func PartialRatio(a, b string) float64 {
	return partialRatioRunes([]rune(a), []rune(b))
}

func partialRatioRunes(a, b []rune) float64 {
	if len(a) == 0 || len(b) == 0 {
		if len(a) == 0 && len(b) == 0 {
			return 100
		}
		return 0
	}

	if len(a) > len(b) {
		a, b = b, a
	}

	score := partialWindows(a, b)
	if score != 100 && len(a) == len(b) {
		if swapped := partialWindows(b, a); swapped > score {
			score = swapped
		}
	}
	return score
}

// partialWindows slides needle across haystack. Windows are only scored when
// the rune that enters them occurs in needle.
func partialWindows(needle, haystack []rune) float64 {
	chars := make(map[rune]bool, len(needle))
	for _, r := range needle {
		chars[r] = true
	}

	n, h := len(needle), len(haystack)
	best := 0.0
	consider := func(window []rune) bool {
		if s := ratioRunes(needle, window); s > best {
			best = s
		}
		return best == 100
	}

	// Windows growing in from the left edge
	for i := 1; i < n; i++ {
		if !chars[haystack[i-1]] {
			continue
		}
		if consider(haystack[:i]) {
			return best
		}
	}

	// Full-width windows
	for i := 0; i < h-n; i++ {
		if !chars[haystack[i+n-1]] {
			continue
		}
		if consider(haystack[i : i+n]) {
			return best
		}
	}

	// Windows shrinking out to the right edge
	for i := h - n; i < h; i++ {
		if !chars[haystack[i]] {
			continue
		}
		if consider(haystack[i:]) {
			return best
		}
	}

	return best
}

// tokenSet holds the whitespace separated words of a string
type tokenSet struct {
	sorted []string // all tokens, sorted
	unique map[string]bool
}

func tokenize(s string) tokenSet {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	unique := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		unique[t] = true
	}
	return tokenSet{sorted: tokens, unique: unique}
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// decompose splits two token sets into their intersection and differences
func decompose(a, b tokenSet) (intersect, diffAB, diffBA []string) {
	for _, t := range sortedKeys(a.unique) {
		if b.unique[t] {
			intersect = append(intersect, t)
		} else {
			diffAB = append(diffAB, t)
		}
	}
	for _, t := range sortedKeys(b.unique) {
		if !a.unique[t] {
			diffBA = append(diffBA, t)
		}
	}
	return intersect, diffAB, diffBA
}

func normDistance(dist, lensum int) float64 {
	if lensum == 0 {
		return 100
	}
	return 100 - 100*float64(dist)/float64(lensum)
}

// TokenRatio is the better of the token sort and token set ratios
func TokenRatio(a, b string) float64 {
	ta, tb := tokenize(a), tokenize(b)
	intersect, diffAB, diffBA := decompose(ta, tb)

	// One side's words are all contained in the other
	if len(intersect) > 0 && (len(diffAB) == 0 || len(diffBA) == 0) {
		return 100
	}

	diffABJoined := []rune(strings.Join(diffAB, " "))
	diffBAJoined := []rune(strings.Join(diffBA, " "))
	abLen := len(diffABJoined)
	baLen := len(diffBAJoined)
	sectLen := len([]rune(strings.Join(intersect, " ")))

	sep := 0
	if sectLen != 0 {
		sep = 1
	}
	sectABLen := sectLen + sep + abLen
	sectBALen := sectLen + sep + baLen

	result := Ratio(strings.Join(ta.sorted, " "), strings.Join(tb.sorted, " "))

	lcs := edlib.LCS(string(diffABJoined), string(diffBAJoined))
	dist := abLen + baLen - 2*lcs
	if s := normDistance(dist, sectABLen+sectBALen); s > result {
		result = s
	}

	if sectLen == 0 {
		return result
	}

	// sect+ab against sect and sect+ba against sect differ only by the
	// appended words, so their distance is the length difference
	if s := normDistance(sep+abLen, sectLen+sectABLen); s > result {
		result = s
	}
	if s := normDistance(sep+baLen, sectLen+sectBALen); s > result {
		result = s
	}
	return result
}

// PartialTokenRatio is the partial ratio of the sorted token strings,
// or 100 when the strings share a word.
func PartialTokenRatio(a, b string) float64 {
	ta, tb := tokenize(a), tokenize(b)
	intersect, diffAB, diffBA := decompose(ta, tb)
	if len(intersect) > 0 {
		return 100
	}

	result := PartialRatio(strings.Join(ta.sorted, " "), strings.Join(tb.sorted, " "))
	if len(ta.unique) == len(diffAB) && len(tb.unique) == len(diffBA) {
		return result
	}
	if s := PartialRatio(strings.Join(diffAB, " "), strings.Join(diffBA, " ")); s > result {
		result = s
	}
	return result
}

// WRatio is a weighted similarity score, 0..100, combining the plain,
// partial and token based ratios depending on how much the lengths of a and
// b differ. Comparison is case sensitive; inputs are NFC normalised.
func WRatio(a, b string) float64 {
	a = norm.NFC.String(a)
	b = norm.NFC.String(b)

	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	shorter, longer := len(ra), len(rb)
	if shorter > longer {
		shorter, longer = longer, shorter
	}
	lenRatio := float64(longer) / float64(shorter)

	score := ratioRunes(ra, rb)

	if lenRatio < 1.5 {
		if s := TokenRatio(a, b) * unbaseScale; s > score {
			score = s
		}
		return score
	}

	partialScale := partialNear
	if lenRatio >= 8 {
		partialScale = partialLong
	}

	if s := partialRatioRunes(ra, rb) * partialScale; s > score {
		score = s
	}
	if s := PartialTokenRatio(a, b) * unbaseScale * partialScale; s > score {
		score = s
	}
	return score
}
