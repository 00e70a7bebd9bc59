package markov

import "math"

// LogProbability returns the natural-log probability that the modeled
// speaker produced s. The result is a sum over the characters of s and is not
// normalized by its length. Windows of s wrap around its own end, independent
// of the training text. An empty s scores zero.
//
// The smoothed ratio (M+1)/(N+S) is always positive for a model trained on
// non-empty text. A model trained on empty text has S = 0 and scores any
// non-empty s as +Inf; callers comparing speakers should reject empty
// training text first.
func (m *Model) LogProbability(s string) float64 {
	runes := []rune(s)
	keyBuf := make([]rune, 0, m.order+1)
	var total float64
	for i := range runes {
		keyBuf = appendWindow(keyBuf[:0], runes, i, m.order+1)
		n := m.counts.Get(string(keyBuf[:m.order]))
		next := m.counts.Get(string(keyBuf))
		total += math.Log(float64(next+1) / float64(n+m.alphabetSize))
	}
	return total
}
