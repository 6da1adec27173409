package cmd

import (
	"fmt"

	"github.com/KaramelBytes/soilfusion-cli/internal/features"
	"github.com/KaramelBytes/soilfusion-cli/internal/tabular"
	"github.com/KaramelBytes/soilfusion-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	trainJSON bool
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Transcode .xlsx/.json uploads in the data directory to .csv",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		converted, warnings := tabular.ConvertDir(c.DataDir, logger())
		for _, name := range converted {
			fmt.Fprintf(out, "✓ Converted %s\n", name)
		}
		for _, w := range warnings {
			fmt.Fprintf(out, "⚠ %s\n", w)
		}
		if len(converted) == 0 && len(warnings) == 0 {
			fmt.Fprintln(out, "(nothing to convert)")
		}
		return nil
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Load and normalize the data directory and summarize what was found",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return err
		}
		snap, err := p.Prepare()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Inputs: %s\n", snap.Inputs)
		for _, f := range snap.Inputs.Synthesized {
			fmt.Fprintf(out, "⚠ Synthesized %s\n", f)
		}
		fmt.Fprintf(out, "Sensor shape: %s\n", snap.Canonical.Shape)
		if snap.Canonical.Skipped > 0 {
			fmt.Fprintf(out, "Skipped rows: %d\n", snap.Canonical.Skipped)
		}
		if snap.Canonical.JoinDropped > 0 {
			fmt.Fprintf(out, "Rows lost in weather join: %d\n", snap.Canonical.JoinDropped)
		}
		fmt.Fprintf(out, "Fields: %d, rows: %d\n", len(snap.Features.Fields()), snap.Features.Len())
		for _, id := range snap.Features.Fields() {
			rows, _ := snap.Features.Recent(id, snap.Features.Len())
			printFieldSpan(cmd, id, rows)
		}
		return nil
	},
}

func printFieldSpan(cmd *cobra.Command, id int64, rows []features.Row) {
	if len(rows) == 0 {
		return
	}
	first, last := rows[0], rows[len(rows)-1]
	soil := last.SoilType
	if soil == "" {
		soil = "unknown"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "- %d: %d days %s..%s (%s)\n",
		id, len(rows), first.Date.Format("2006-01-02"), last.Date.Format("2006-01-02"), soil)
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Run the offline pipeline and persist the yield, anomaly and cluster models",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return err
		}
		snap, err := p.Prepare()
		if err != nil {
			return err
		}
		rep, err := p.Train(snap)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if trainJSON {
			b, err := utils.PrettyJSON(rep)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		d := rep.Diagnostics
		fmt.Fprintf(out, "Run %s: %d rows from %d fields (%s shape)\n",
			snap.RunID, snap.Features.Len(), len(snap.Features.Fields()), snap.Canonical.Shape)
		fmt.Fprintf(out, "✓ Yield model: %s (%d samples", d.Yield.Selected, d.Yield.Samples)
		if d.Yield.Synthetic {
			fmt.Fprint(out, ", synthetic labels")
		}
		fmt.Fprintf(out, ") -> %s\n", rep.Yield.Path)
		fmt.Fprintf(out, "✓ Anomaly model: %d/%d flagged -> %s\n", d.Anomaly.Flagged, d.Anomaly.Samples, rep.Anomaly.Path)
		if rep.Cluster != nil {
			fmt.Fprintf(out, "✓ Cluster model: k=%d (silhouette %.3f) -> %s\n", d.Clusters.BestK, d.Clusters.BestScore, rep.Cluster.Path)
		} else {
			fmt.Fprintln(out, "⚠ Cluster model skipped: not enough samples")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(trainCmd)
	trainCmd.Flags().BoolVar(&trainJSON, "json", false, "print the training report as JSON")
}
