package rules

import (
	"github.com/sahilm/fuzzy"
)

// Filter returns the rules whose key or phrasings match pattern as a fuzzy
// subsequence, best match first. An empty pattern returns the whole set.
// It backs interactive listing and is unrelated to Match.
func Filter(set RuleSet, pattern string) RuleSet {
	if pattern == "" {
		return set
	}

	var (
		targets []string
		owner   []int
	)
	for i, r := range set {
		targets = append(targets, r.Key)
		owner = append(owner, i)
		for _, p := range r.Phrasings {
			targets = append(targets, p)
			owner = append(owner, i)
		}
	}

	matches := fuzzy.Find(pattern, targets)

	seen := make(map[int]bool)
	out := make(RuleSet, 0, len(matches))
	for _, m := range matches {
		i := owner[m.Index]
		if seen[i] {
			continue
		}
		seen[i] = true
		out = append(out, set[i])
	}
	return out
}

// Suggest returns up to n rule keys whose phrasings best contain message as
// a fuzzy subsequence. Used to hint at near misses.
func Suggest(set RuleSet, message string, n int) []string {
	if n <= 0 {
		return nil
	}
	var keys []string
	for _, r := range Filter(set, Process(message)) {
		keys = append(keys, r.Key)
		if len(keys) == n {
			break
		}
	}
	return keys
}
