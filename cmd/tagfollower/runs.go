package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/ayusman/tagfollower/internal/store"
	"github.com/spf13/cobra"
)

var (
	runsDBPath string
	runsLimit  int
)

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List recorded runs, or show the zone breakdown of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := runsDBPath
		if path == "" {
			var err error
			if path, err = defaultDBPath(); err != nil {
				return err
			}
		}

		st, err := store.New(path)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		if len(args) == 1 {
			return showRun(cmd.OutOrStdout(), st, args[0])
		}
		return listRuns(cmd.OutOrStdout(), st, runsLimit)
	},
}

func init() {
	runsCmd.Flags().StringVar(&runsDBPath, "db", "", "SQLite database (default: ~/.tagfollower/tagfollower.db)")
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "maximum number of runs to list")
	rootCmd.AddCommand(runsCmd)
}

func listRuns(out io.Writer, st *store.Store, limit int) error {
	runs, err := st.Runs().List(limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tSOURCE\tDICTIONARY\tFRAMES\tSTOPPED\tSTARTED")
	fmt.Fprintln(w, "--\t------\t----------\t------\t-------\t-------")

	for _, r := range runs {
		stopped := r.StopReason
		if !r.Finished() {
			stopped = "running"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			r.ID, r.Source, r.Dictionary, r.Frames, stopped, r.StartedAt.Local().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func showRun(out io.Writer, st *store.Store, id string) error {
	run, err := st.Runs().GetByID(id)
	if err != nil {
		return fmt.Errorf("run %s: %w", id, err)
	}

	counts, err := st.Frames().ZoneCounts(id)
	if err != nil {
		return fmt.Errorf("zone counts: %w", err)
	}

	fmt.Fprintf(out, "Run %s\n", run.ID)
	fmt.Fprintf(out, "  source:     %s\n", run.Source)
	fmt.Fprintf(out, "  dictionary: %s\n", run.Dictionary)
	fmt.Fprintf(out, "  selection:  %s\n", run.Selection)
	fmt.Fprintf(out, "  topic:      %s\n", run.Topic)
	fmt.Fprintf(out, "  frames:     %d\n", run.Frames)
	if run.Finished() {
		fmt.Fprintf(out, "  duration:   %s (%s)\n", run.EndedAt.Sub(run.StartedAt).Round(time.Millisecond), run.StopReason)
	}

	zones := make([]string, 0, len(counts))
	for z := range counts {
		zones = append(zones, z)
	}
	sort.Strings(zones)

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "\nZONE\tFRAMES")
	for _, z := range zones {
		fmt.Fprintf(w, "%s\t%d\n", z, counts[z])
	}
	return w.Flush()
}
