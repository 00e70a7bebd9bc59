// Package speaker decides which of two reference speakers more likely
// produced a text sample, by comparing the sample's per-character log
// probability under a character-level Markov model of each speaker.
package speaker

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/CTAG07/Markovian/pkg/markov"
)

// Label names one of the two reference speakers.
type Label string

const (
	// SpeakerA is the label of the first reference speaker.
	SpeakerA Label = "A"
	// SpeakerB is the label of the second reference speaker. It wins ties.
	SpeakerB Label = "B"
)

var (
	// ErrEmptyQuery is returned when the text to identify is empty, since its
	// score cannot be normalized by length. It wraps markov.ErrInvalidInput.
	ErrEmptyQuery = fmt.Errorf("%w: query text is empty", markov.ErrInvalidInput)
	// ErrEmptyTraining is returned when a reference speaker has no training
	// text. It wraps markov.ErrInvalidInput.
	ErrEmptyTraining = fmt.Errorf("%w: training text is empty", markov.ErrInvalidInput)
)

// Result holds the normalized scores of a query under both speakers' models
// and the label of the more likely speaker.
type Result struct {
	ScoreA float64 `json:"score_a"`
	ScoreB float64 `json:"score_b"`
	Label  Label   `json:"label"`
}

// Conclusion renders the result's label as a sentence.
func (r Result) Conclusion() string {
	return fmt.Sprintf("Speaker %s is most likely", r.Label)
}

// Identify trains an order-k model on each of textA and textB, scores textC
// under both and labels the speaker with the higher score. Scores are log
// probabilities divided by the number of characters in textC so that queries
// of different lengths are comparable.
func Identify(textA, textB, textC string, k int, opts ...markov.Option) (Result, error) {
	if k < 1 {
		return Result{}, fmt.Errorf("%w: order must be positive, got %d", markov.ErrInvalidInput, k)
	}
	if textC == "" {
		return Result{}, ErrEmptyQuery
	}
	modelA, modelB, err := Train(textA, textB, k, opts...)
	if err != nil {
		return Result{}, err
	}
	return Compare(modelA, modelB, textC)
}

// Train builds the order-k models of both reference speakers. Empty training
// text is rejected since its model has an alphabet of zero symbols and would
// score any query as infinitely likely.
func Train(textA, textB string, k int, opts ...markov.Option) (*markov.Model, *markov.Model, error) {
	if k < 1 {
		return nil, nil, fmt.Errorf("%w: order must be positive, got %d", markov.ErrInvalidInput, k)
	}
	if textA == "" {
		return nil, nil, fmt.Errorf("speaker %s: %w", SpeakerA, ErrEmptyTraining)
	}
	if textB == "" {
		return nil, nil, fmt.Errorf("speaker %s: %w", SpeakerB, ErrEmptyTraining)
	}

	modelA, err := markov.Build(k, textA, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build model for speaker %s: %w", SpeakerA, err)
	}
	modelB, err := markov.Build(k, textB, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build model for speaker %s: %w", SpeakerB, err)
	}
	return modelA, modelB, nil
}

// Compare scores textC under two already trained models. Both models are
// only read, so they may be shared with other goroutines.
func Compare(modelA, modelB *markov.Model, textC string) (Result, error) {
	if modelA == nil || modelB == nil {
		return Result{}, errors.New("speaker: both models are required")
	}
	n := utf8.RuneCountInString(textC)
	if n == 0 {
		return Result{}, ErrEmptyQuery
	}

	r := Result{
		ScoreA: modelA.LogProbability(textC) / float64(n),
		ScoreB: modelB.LogProbability(textC) / float64(n),
		Label:  SpeakerB,
	}
	if r.ScoreA > r.ScoreB {
		r.Label = SpeakerA
	}
	return r, nil
}
