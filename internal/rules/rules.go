// Package rules answers chat messages that closely resemble a known question
// with a canned response, so the language model is only consulted for
// everything else.
package rules

import "errors"

var (
	// ErrNoPhrasings is returned for a rule without candidate phrasings.
	ErrNoPhrasings = errors.New("rule has no phrasings")

	// ErrNoResponses is returned for a rule without responses.
	ErrNoResponses = errors.New("rule has no responses")
)

// Rule maps a set of phrasings to a set of interchangeable responses.
type Rule struct {
	Key       string
	Phrasings []string
	Responses []string
}

// Validate reports whether the rule can ever produce a response.
func (r Rule) Validate() error {
	if len(nonEmpty(r.Phrasings)) == 0 {
		return ErrNoPhrasings
	}
	if len(nonEmpty(r.Responses)) == 0 {
		return ErrNoResponses
	}
	return nil
}

// RuleSet is an ordered list of rules. Earlier rules win ties.
type RuleSet []Rule

// Keys returns the rule keys in declaration order.
func (s RuleSet) Keys() []string {
	keys := make([]string, len(s))
	for i, r := range s {
		keys[i] = r.Key
	}
	return keys
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
