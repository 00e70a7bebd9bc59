package markov

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/CTAG07/Markovian/pkg/probe"
)

// DefaultCapacity is the initial slot count of a model's gram table.
const DefaultCapacity = 57

// ErrInvalidInput is returned when a model or score is requested with
// arguments that cannot form well-defined windows, such as a non-positive order.
var ErrInvalidInput = errors.New("markov: invalid input")

// Model is a k-order character-level Markov model. It holds the counts of
// every order-length and (order+1)-length circular window of its training text
// in a single table; the two families never collide since their lengths differ.
type Model struct {
	order        int
	alphabetSize int
	trainedRunes int
	counts       probe.Table
}

// options holds the settings used while building a model.
type options struct {
	initialCapacity int
	maxCapacity     int
	logger          *slog.Logger
}

// Option is a function that configures how a model is built.
type Option func(*options)

// WithInitialCapacity sets the starting slot count of the gram table.
// Default: DefaultCapacity
func WithInitialCapacity(n int) Option {
	return func(o *options) { o.initialCapacity = n }
}

// WithMaxCapacity caps how far the gram table may grow. Training text with
// more distinct grams than fit fails with probe.ErrResourceExhausted.
// Default: probe.DefaultMaxCapacity
func WithMaxCapacity(n int) Option {
	return func(o *options) { o.maxCapacity = n }
}

// WithLogger sets the logger used while building. By default all logs are
// discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Build trains a model of the given order on text. Order must be at least one.
// An empty text yields a model with no counts and an alphabet size of zero.
func Build(order int, text string, opts ...Option) (*Model, error) {
	if order < 1 {
		return nil, fmt.Errorf("%w: order must be positive, got %d", ErrInvalidInput, order)
	}

	o := &options{
		initialCapacity: DefaultCapacity,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(o)
	}

	var tableOpts []probe.Option
	if o.maxCapacity > 0 {
		tableOpts = append(tableOpts, probe.WithMaxCapacity(o.maxCapacity))
	}
	counts, err := probe.New(o.initialCapacity, 0, tableOpts...)
	if err != nil {
		return nil, fmt.Errorf("could not allocate gram table: %w", err)
	}

	runes := []rune(text)
	m := &Model{
		order:        order,
		alphabetSize: alphabetSize(runes),
		trainedRunes: len(runes),
		counts:       counts,
	}
	if err = m.train(runes); err != nil {
		return nil, fmt.Errorf("training order %d model failed: %w", order, err)
	}

	o.logger.Debug("Model built",
		slog.Int("order", order),
		slog.Int("training_runes", len(runes)),
		slog.Int("alphabet_size", m.alphabetSize),
		slog.Int("distinct_grams", counts.Len()),
		slog.Int("table_capacity", counts.Cap()),
	)

	return m, nil
}

// Order returns the context length k of the model.
func (m *Model) Order() int {
	return m.order
}

// AlphabetSize returns the number of distinct characters in the training text.
func (m *Model) AlphabetSize() int {
	return m.alphabetSize
}

// Count returns how many times gram occurred as a circular window of the
// training text. Only grams of length Order or Order+1 are ever counted.
func (m *Model) Count(gram string) int {
	return m.counts.Get(gram)
}
