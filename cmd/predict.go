package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/KaramelBytes/soilfusion-cli/internal/history"
	"github.com/KaramelBytes/soilfusion-cli/internal/narrative"
	"github.com/KaramelBytes/soilfusion-cli/internal/pipeline"
	"github.com/KaramelBytes/soilfusion-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	predictLang string

	historyLimit int
	historyJSON  bool
)

func writeJSON(w io.Writer, v any) error {
	b, err := utils.PrettyJSON(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func parseFieldID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("field_id must be an integer, got %q", s)
	}
	return id, nil
}

var predictCmd = &cobra.Command{
	Use:   "predict <field_id>",
	Short: "Analyze one field and print the result as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		// Every failure is reported as a JSON payload on stdout.
		fail := func(err error) error {
			if werr := writeJSON(out, pipeline.NewErrorPayload(err, true)); werr != nil {
				return err
			}
			return errReported
		}
		id, err := parseFieldID(args[0])
		if err != nil {
			return fail(err)
		}
		p, err := newPipeline()
		if err != nil {
			return fail(err)
		}
		lang := narrative.ParseLang(cfg.Language)
		if cmd.Flags().Changed("lang") {
			lang = narrative.ParseLang(predictLang)
		}
		res, err := p.Analyze(id, lang)
		if err != nil {
			return fail(err)
		}
		if cfg.HistoryDB != "" {
			recordHistory(cmd.Context(), cfg.HistoryDB, res)
		}
		return writeJSON(out, res)
	},
}

func recordHistory(ctx context.Context, path string, res *pipeline.Result) {
	if ctx == nil {
		ctx = context.Background()
	}
	log := logger()
	store, err := history.Open(ctx, path)
	if err != nil {
		log.Warnw("history disabled for this run", "error", err)
		return
	}
	defer store.Close()
	e, err := history.FromResult(res, time.Now())
	if err == nil {
		_, err = store.Record(ctx, e)
	}
	if err != nil {
		log.Warnw("history entry not recorded", "field_id", res.FieldID, "error", err)
	}
}

var historyCmd = &cobra.Command{
	Use:   "history <field_id>",
	Short: "List stored analyses for a field, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseFieldID(args[0])
		if err != nil {
			return err
		}
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if c.HistoryDB == "" {
			return fmt.Errorf("history is disabled; set it with `soilfusion config set history_db <path>`")
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		store, err := history.Open(ctx, c.HistoryDB)
		if err != nil {
			return err
		}
		defer store.Close()
		entries, err := store.List(ctx, id, historyLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if historyJSON {
			if entries == nil {
				entries = []history.Entry{}
			}
			return writeJSON(out, entries)
		}
		if len(entries) == 0 {
			fmt.Fprintln(out, "(no history)")
			return nil
		}
		for _, e := range entries {
			fmt.Fprintf(out, "- %s  %-8s  %-18s  yield=%.0f  confidence=%.2f  anomaly=%t\n",
				e.Timestamp.Local().Format("2006-01-02 15:04"), e.SoilHealth, e.TargetCrop,
				e.YieldPrediction, e.Confidence, e.AnomalyDetected)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(historyCmd)
	predictCmd.Flags().StringVar(&predictLang, "lang", "", "summary language: en or hi (default from config)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", history.DefaultLimit, "maximum entries to list")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "print entries as JSON")
}
