package markov

import (
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
)

// mustBuild trains a model and fails the test on error.
func mustBuild(tb testing.TB, order int, text string, opts ...Option) *Model {
	tb.Helper()
	m, err := Build(order, text, opts...)
	if err != nil {
		tb.Fatalf("Build(%d, %q) error = %v", order, text, err)
	}
	return m
}

var (
	benchmarkCorpus string
	corpusOnce      sync.Once
)

// benchmarkPhrases mixes ASCII prose with multi-byte runes so that benchmarks
// cover the rune conversion paths.
var benchmarkPhrases = []string{
	"four score and seven years ago ",
	"ask not what your country can do for you, ",
	"rien n'est à craindre, tout est à comprendre. ",
	"ich bin ein berliner! ",
	"yes we can. ",
	"the only thing we have to fear is fear itself; ",
}

// createBenchmarkCorpus builds a deterministic corpus of about 256 KiB by
// drawing phrases with a fixed seed.
func createBenchmarkCorpus() string {
	corpusOnce.Do(func() {
		rng := rand.New(rand.NewPCG(7, 11))
		var sb strings.Builder
		for sb.Len() < 256<<10 {
			sb.WriteString(benchmarkPhrases[rng.IntN(len(benchmarkPhrases))])
		}
		benchmarkCorpus = sb.String()
	})
	return benchmarkCorpus
}
