package rules

import (
	"slices"
	"strings"
	"unicode"
)

// Scores are on a 0-100 scale. The scorer is a weighted ratio in the style of
// the Python fuzzy matching libraries: plain Indel similarity, token sort and
// token set similarity, and substring similarity when one string is much
// longer than the other.

// Process lower-cases s, turns every rune that is not a letter or digit into a
// space and trims the result.
func Process(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.TrimSpace(b.String())
}

// Score compares two raw strings after processing them.
func Score(a, b string) float64 {
	return WeightedRatio(Process(a), Process(b))
}

// WeightedRatio combines the ratios below, favouring whole-string similarity
// and discounting token and substring matches.
func WeightedRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	shorter, longer := len(ra), len(rb)
	if shorter > longer {
		shorter, longer = longer, shorter
	}
	lenRatio := float64(longer) / float64(shorter)

	best := Ratio(a, b)
	if lenRatio < 1.5 {
		best = max(best, TokenSortRatio(a, b)*0.95, TokenSetRatio(a, b)*0.95)
		return best
	}

	partialScale := 0.9
	if lenRatio > 8 {
		partialScale = 0.6
	}
	best = max(best, PartialRatio(a, b)*partialScale)
	best = max(best, partialTokenRatio(a, b)*0.95*partialScale)
	return best
}

// Ratio is the normalized Indel similarity: 200*LCS / (len(a)+len(b)).
func Ratio(a, b string) float64 {
	return runeRatio([]rune(a), []rune(b))
}

// TokenSortRatio compares the strings after sorting their words.
func TokenSortRatio(a, b string) float64 {
	return Ratio(sortedTokens(a), sortedTokens(b))
}

// TokenSetRatio compares the shared words against each side's extra words.
func TokenSetRatio(a, b string) float64 {
	sect, onlyA, onlyB := tokenSets(a, b)
	if len(sect) == 0 && (len(onlyA) == 0 || len(onlyB) == 0) {
		return 0
	}
	if len(sect) > 0 && (len(onlyA) == 0 || len(onlyB) == 0) {
		return 100
	}

	s := strings.Join(sect, " ")
	combinedA := strings.TrimSpace(s + " " + strings.Join(onlyA, " "))
	combinedB := strings.TrimSpace(s + " " + strings.Join(onlyB, " "))

	return max(Ratio(s, combinedA), Ratio(s, combinedB), Ratio(combinedA, combinedB))
}

// PartialRatio is the best Ratio of the shorter string against every
// same-length window of the longer one, including windows hanging off
// either end.
func PartialRatio(a, b string) float64 {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		return 0
	}

	best := 0.0
	n := len(short)
	for start := -(n - 1); start < len(long); start++ {
		lo, hi := max(start, 0), min(start+n, len(long))
		if lo >= hi {
			continue
		}
		best = max(best, runeRatio(short, long[lo:hi]))
		if best == 100 {
			break
		}
	}
	return best
}

func partialTokenRatio(a, b string) float64 {
	sect, _, _ := tokenSets(a, b)
	if len(sect) > 0 {
		return 100
	}
	return PartialRatio(sortedTokens(a), sortedTokens(b))
}

func runeRatio(a, b []rune) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 100
	}
	return 200 * float64(lcs(a, b)) / float64(total)
}

// lcs returns the length of the longest common subsequence.
func lcs(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func sortedTokens(s string) string {
	tokens := strings.Fields(s)
	slices.Sort(tokens)
	return strings.Join(tokens, " ")
}

func tokenSets(a, b string) (sect, onlyA, onlyB []string) {
	setA := toSet(strings.Fields(a))
	setB := toSet(strings.Fields(b))

	for t := range setA {
		if _, ok := setB[t]; ok {
			sect = append(sect, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range setB {
		if _, ok := setA[t]; !ok {
			onlyB = append(onlyB, t)
		}
	}
	slices.Sort(sect)
	slices.Sort(onlyA)
	slices.Sort(onlyB)
	return sect, onlyA, onlyB
}

func toSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}
