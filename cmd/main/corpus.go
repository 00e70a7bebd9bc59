package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/CTAG07/Markovian/pkg/corpus"
	"github.com/spf13/cobra"
)

// the corpus and history command line arguments
var (
	corpusSpeaker *string // speaker receiving new samples
	historyLimit  *int    // number of history entries to show
)

var corpusCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Manage the stored speaker samples",
}

var corpusAddCmd = &cobra.Command{
	Use:   "add --speaker NAME <file>...",
	Short: "Add sample files to a speaker, creating the speaker if needed",
	Args:  cobra.MinimumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return checkRequiredFlags(cmd.Flags())
	},
	RunE: withStore(func(ctx context.Context, w io.Writer, store *corpus.Store, args []string) error {
		return addSamples(ctx, store, *corpusSpeaker, args)
	}),
}

var corpusListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the stored speakers",
	Args:  cobra.NoArgs,
	RunE: withStore(func(ctx context.Context, w io.Writer, store *corpus.Store, _ []string) error {
		speakers, err := store.Speakers(ctx)
		if err != nil {
			return err
		}
		return writeSpeakers(w, speakers)
	}),
}

var corpusShowCmd = &cobra.Command{
	Use:   "show <speaker>",
	Short: "Print the full training text of a speaker",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(ctx context.Context, w io.Writer, store *corpus.Store, args []string) error {
		text, err := store.Text(ctx, args[0])
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, text)
		return err
	}),
}

var corpusRemoveCmd = &cobra.Command{
	Use:   "remove <speaker>",
	Short: "Delete a speaker and all of its samples",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(ctx context.Context, w io.Writer, store *corpus.Store, args []string) error {
		return store.RemoveSpeaker(ctx, args[0])
	}),
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded identifications, newest first",
	Args:  cobra.NoArgs,
	RunE: withStore(func(ctx context.Context, w io.Writer, store *corpus.Store, _ []string) error {
		history, err := store.History(ctx, *historyLimit)
		if err != nil {
			return err
		}
		return writeHistory(w, history)
	}),
}

func init() {
	corpusSpeaker = corpusAddCmd.Flags().StringP("speaker", "s", "", "name of the speaker the samples belong to - required")
	_ = corpusAddCmd.MarkFlagRequired("speaker")
	historyLimit = historyCmd.Flags().IntP("limit", "n", 20, "maximum number of entries to show")

	corpusCmd.AddCommand(corpusAddCmd, corpusListCmd, corpusShowCmd, corpusRemoveCmd)
	rootCmd.AddCommand(corpusCmd, historyCmd)
}

// withStore wraps a store-backed command body with config loading and store
// setup and teardown.
func withStore(fn func(ctx context.Context, w io.Writer, store *corpus.Store, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		config, logger, err := setup()
		if err != nil {
			return err
		}
		store, closeStore, err := openStore(config, logger)
		if err != nil {
			return err
		}
		defer closeStore()
		return fn(cmd.Context(), cmd.OutOrStdout(), store, args)
	}
}

// addSamples reads every file and appends it to name's corpus as its own sample.
func addSamples(ctx context.Context, store *corpus.Store, name string, files []string) error {
	for _, file := range files {
		text, err := readText(file)
		if err != nil {
			return err
		}
		if text == "" {
			return fmt.Errorf("sample %s is empty", file)
		}
		if err = store.AddSample(ctx, name, text); err != nil {
			return fmt.Errorf("failed to add %s: %w", file, err)
		}
	}
	return nil
}

func writeSpeakers(w io.Writer, speakers []corpus.SpeakerInfo) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSAMPLES\tCHARACTERS")
	for _, s := range speakers {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", s.Name, s.Samples, s.Runes)
	}
	return tw.Flush()
}

func writeHistory(w io.Writer, history []corpus.Identification) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tSPEAKER A\tSPEAKER B\tORDER\tSCORE A\tSCORE B\tLABEL")
	for _, h := range history {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%.6f\t%.6f\t%s\n",
			h.ID, h.CreatedAt.Format(time.DateTime), h.SpeakerA, h.SpeakerB, h.Order,
			h.Result.ScoreA, h.Result.ScoreB, h.Result.Label)
	}
	return tw.Flush()
}
