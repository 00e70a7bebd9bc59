package markov

// ModelStats holds aggregated statistics for a single trained model.
type ModelStats struct {
	Order         int `json:"order"`          // The context length k.
	AlphabetSize  int `json:"alphabet_size"`  // Distinct characters in the training text.
	TrainingRunes int `json:"training_runes"` // Characters in the training text; also the number of windows per family.
	DistinctGrams int `json:"distinct_grams"` // Unique k-grams and (k+1)-grams stored.
}

// Stats returns a snapshot of the model's statistics.
func (m *Model) Stats() ModelStats {
	return ModelStats{
		Order:         m.order,
		AlphabetSize:  m.alphabetSize,
		TrainingRunes: m.trainedRunes,
		DistinctGrams: m.counts.Len(),
	}
}
