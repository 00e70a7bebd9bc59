/*
Package markov builds k-order, character-level Markov models from text and
scores new text against them.

A model counts every k-length and (k+1)-length window of its training text,
treating the text as circular so that windows starting near the end wrap back
to the beginning. Windows always have their full length, even when the order
reaches the length of the text: "ab" at order 3 yields "aba", "bab", "abab"
and "baba". Implementations that cut such windows short at the end of the text
produce different counts for very short texts. The counts live in a linear-probing table from package probe.
Scoring a string sums, over each of its characters, the smoothed log
probability ln((M+1)/(N+S)), where N is the count of the k-length context, M
the count of the context followed by the character and S the number of
distinct characters in the training text.

Models are immutable once built and may be shared between goroutines.

	model, err := markov.Build(2, trainingText)
	if err != nil {
		return err
	}
	score := model.LogProbability(sample) / float64(utf8.RuneCountInString(sample))
*/
package markov
