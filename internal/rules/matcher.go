package rules

import (
	"math/rand/v2"
	"sync"
	"time"
)

// DefaultThreshold is the minimum score for a rule to answer a message.
const DefaultThreshold = 85.0

// Matcher finds the first rule whose phrasings resemble a message.
// It is safe for concurrent use.
type Matcher struct {
	rules     []compiledRule
	threshold float64

	mu  sync.Mutex // guards rnd
	rnd *rand.Rand
}

type compiledRule struct {
	Rule
	processed []string
}

// Result describes how a message scored against the rule set.
type Result struct {
	Key      string  // best scoring rule, empty when there are no rules
	Phrasing string  // phrasing that produced the score
	Score    float64 // 0-100
	Matched  bool    // Score reached the threshold
	Response string  // chosen response when Matched
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithThreshold overrides DefaultThreshold.
func WithThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.threshold = threshold
	}
}

// WithRand sets the source used to pick among several responses.
func WithRand(r *rand.Rand) Option {
	return func(m *Matcher) {
		m.rnd = r
	}
}

// NewMatcher builds a Matcher over set. Phrasings are processed once here.
func NewMatcher(set RuleSet, opts ...Option) *Matcher {
	m := &Matcher{
		threshold: DefaultThreshold,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.rnd == nil {
		seed := uint64(time.Now().UnixNano())
		m.rnd = rand.New(rand.NewPCG(seed, seed>>1|1))
	}

	m.rules = make([]compiledRule, 0, len(set))
	for _, r := range set {
		if r.Validate() != nil {
			continue
		}
		r.Phrasings = nonEmpty(r.Phrasings)
		r.Responses = nonEmpty(r.Responses)
		cr := compiledRule{Rule: r}
		for _, p := range r.Phrasings {
			cr.processed = append(cr.processed, Process(p))
		}
		m.rules = append(m.rules, cr)
	}
	return m
}

// Len returns the number of usable rules.
func (m *Matcher) Len() int {
	return len(m.rules)
}

// Match returns a response from the first rule, in declaration order, that
// scores at least the threshold against message.
func (m *Matcher) Match(message string) (string, bool) {
	msg := Process(message)
	if msg == "" {
		return "", false
	}

	for _, r := range m.rules {
		score, _ := bestScore(msg, r)
		if score >= m.threshold {
			return m.pick(r.Responses), true
		}
	}
	return "", false
}

// Explain is Match with diagnostics. When no rule matches, the Result still
// names the closest rule and its score.
func (m *Matcher) Explain(message string) Result {
	msg := Process(message)

	var best Result
	for _, r := range m.rules {
		score, phrasing := bestScore(msg, r)
		if score >= m.threshold {
			return Result{
				Key:      r.Key,
				Phrasing: phrasing,
				Score:    score,
				Matched:  true,
				Response: m.pick(r.Responses),
			}
		}
		if best.Key == "" || score > best.Score {
			best = Result{Key: r.Key, Phrasing: phrasing, Score: score}
		}
	}
	return best
}

func bestScore(msg string, r compiledRule) (float64, string) {
	best, phrasing := 0.0, ""
	for i, p := range r.processed {
		if s := WeightedRatio(msg, p); s > best || phrasing == "" {
			best, phrasing = s, r.Phrasings[i]
		}
	}
	return best, phrasing
}

func (m *Matcher) pick(responses []string) string {
	if len(responses) == 1 {
		return responses[0]
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return responses[m.rnd.IntN(len(responses))]
}
