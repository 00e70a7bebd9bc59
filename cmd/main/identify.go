package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"unicode/utf8"

	"github.com/CTAG07/Markovian/pkg/corpus"
	"github.com/CTAG07/Markovian/pkg/markov"
	"github.com/CTAG07/Markovian/pkg/speaker"
	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
)

// the identify command line arguments
var (
	identifyOrder    *int    // model order in corpus mode
	identifySpeakerA *string // corpus speaker used as A
	identifySpeakerB *string // corpus speaker used as B
	identifyOut      *string // file to write a JSON report to
	identifyRecord   *bool   // log the run to the corpus history
)

var identifyCmd = &cobra.Command{
	Use:   "identify <fileA> <fileB> <fileC> <k> | identify --speakerA NAME --speakerB NAME <fileC>",
	Short: "Report which of two speakers more likely produced a text",
	Long: `Train an order-k character model on each speaker's sample and score the query
text under both. Scores are average log probabilities per character; the speaker
with the higher score is reported, ties go to speaker B.

Speaker samples are either read from files or taken from the corpus database
with --speakerA and --speakerB.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if *identifySpeakerA != "" || *identifySpeakerB != "" {
			return cobra.ExactArgs(1)(cmd, args)
		}
		return cobra.ExactArgs(4)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		config, logger, err := setup()
		if err != nil {
			return err
		}
		req, err := parseIdentifyArgs(args, cmd.Flags().Changed("order"), config.Model.DefaultOrder)
		if err != nil {
			return err
		}

		var store *corpus.Store
		if req.fromCorpus() || req.Record {
			var closeStore func()
			store, closeStore, err = openStore(config, logger)
			if err != nil {
				return err
			}
			defer closeStore()
		}
		return runIdentify(cmd.Context(), cmd.OutOrStdout(), config, logger, store, req)
	},
}

func init() {
	identifyOrder = identifyCmd.Flags().IntP("order", "k", 0, "model order when reading speakers from the corpus (default from config)")
	identifySpeakerA = identifyCmd.Flags().StringP("speakerA", "a", "", "corpus speaker to use as speaker A")
	identifySpeakerB = identifyCmd.Flags().StringP("speakerB", "b", "", "corpus speaker to use as speaker B")
	identifyOut = identifyCmd.Flags().StringP("out", "o", "", "write a JSON report to this file")
	identifyRecord = identifyCmd.Flags().Bool("record", false, "log the result to the corpus history")
	identifyCmd.MarkFlagsRequiredTogether("speakerA", "speakerB")
	rootCmd.AddCommand(identifyCmd)
}

// identifyRequest describes one identify run. Either the file fields or the
// speaker fields name the two training samples.
type identifyRequest struct {
	FileA    string
	FileB    string
	FileC    string
	SpeakerA string
	SpeakerB string
	Order    int
	Out      string
	Record   bool
}

func (r identifyRequest) fromCorpus() bool {
	return r.SpeakerA != ""
}

// parseIdentifyArgs combines the positional arguments with the flags. In
// corpus mode the order comes from --order when it was given and from
// defaultOrder otherwise. A positional order is passed through unchecked.
func parseIdentifyArgs(args []string, orderChanged bool, defaultOrder int) (identifyRequest, error) {
	req := identifyRequest{
		SpeakerA: *identifySpeakerA,
		SpeakerB: *identifySpeakerB,
		Order:    *identifyOrder,
		Out:      *identifyOut,
		Record:   *identifyRecord,
	}
	if req.fromCorpus() {
		if !orderChanged {
			req.Order = defaultOrder
		}
		req.FileC = args[0]
		return req, nil
	}

	req.FileA, req.FileB, req.FileC = args[0], args[1], args[2]
	k, err := strconv.Atoi(args[3])
	if err != nil {
		return identifyRequest{}, fmt.Errorf("order must be an integer, got %q", args[3])
	}
	req.Order = k
	return req, nil
}

// identifyReport is the JSON document written by --out.
type identifyReport struct {
	SpeakerA   string            `json:"speaker_a"`
	SpeakerB   string            `json:"speaker_b"`
	Query      string            `json:"query"`
	QueryRunes int               `json:"query_runes"`
	ModelA     markov.ModelStats `json:"model_a"`
	ModelB     markov.ModelStats `json:"model_b"`
	Result     speaker.Result    `json:"result"`
	Conclusion string            `json:"conclusion"`
}

// runIdentify loads the samples named by req, compares the query against
// both speakers and prints the result to w. store may be nil when neither the
// corpus nor the history is used.
func runIdentify(ctx context.Context, w io.Writer, config *Config, logger *slog.Logger, store *corpus.Store, req identifyRequest) error {
	if (req.fromCorpus() || req.Record) && store == nil {
		return errors.New("corpus store is not available")
	}

	nameA, nameB := req.FileA, req.FileB
	var textA, textB string
	var err error
	if req.fromCorpus() {
		nameA, nameB = req.SpeakerA, req.SpeakerB
		if textA, err = store.Text(ctx, req.SpeakerA); err != nil {
			return fmt.Errorf("failed to load speaker %s: %w", req.SpeakerA, err)
		}
		if textB, err = store.Text(ctx, req.SpeakerB); err != nil {
			return fmt.Errorf("failed to load speaker %s: %w", req.SpeakerB, err)
		}
	} else {
		if textA, err = readText(req.FileA); err != nil {
			return err
		}
		if textB, err = readText(req.FileB); err != nil {
			return err
		}
	}
	textC, err := readText(req.FileC)
	if err != nil {
		return err
	}
	if textC == "" {
		return speaker.ErrEmptyQuery
	}

	logger.Debug("Training speaker models", "speaker_a", nameA, "speaker_b", nameB, "order", req.Order)
	modelA, modelB, err := speaker.Train(textA, textB, req.Order, config.Model.Options(logger)...)
	if err != nil {
		return err
	}
	result, err := speaker.Compare(modelA, modelB, textC)
	if err != nil {
		return err
	}
	logger.Info("Identification complete",
		slog.String("speaker_a", nameA),
		slog.String("speaker_b", nameB),
		slog.Float64("score_a", result.ScoreA),
		slog.Float64("score_b", result.ScoreB),
		slog.String("label", string(result.Label)),
	)

	if err = writeResult(w, result); err != nil {
		return err
	}

	if req.Out != "" {
		report := identifyReport{
			SpeakerA:   nameA,
			SpeakerB:   nameB,
			Query:      req.FileC,
			QueryRunes: utf8.RuneCountInString(textC),
			ModelA:     modelA.Stats(),
			ModelB:     modelB.Stats(),
			Result:     result,
			Conclusion: result.Conclusion(),
		}
		if err = writeReport(req.Out, report); err != nil {
			return err
		}
	}

	if req.Record {
		ident, err := store.RecordIdentification(ctx, corpus.Identification{
			SpeakerA:   nameA,
			SpeakerB:   nameB,
			Order:      req.Order,
			QueryRunes: utf8.RuneCountInString(textC),
			Result:     result,
		})
		if err != nil {
			return err
		}
		logger.Debug("Identification recorded", "id", ident.ID)
	}
	return nil
}

// writeResult prints the scores and the conclusion in the report format of
// the command line tool.
func writeResult(w io.Writer, result speaker.Result) error {
	_, err := fmt.Fprintf(w, "Speaker A: %v\nSpeaker B: %v\n\nConclusion: %s\n",
		result.ScoreA, result.ScoreB, result.Conclusion())
	return err
}

// writeReport stores report as indented JSON at path, atomically.
func writeReport(path string, report identifyReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// readText reads a whole sample file. Invalid UTF-8 is rejected since the
// models count characters, not bytes.
func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s is not valid UTF-8", markov.ErrInvalidInput, path)
	}
	return string(data), nil
}
