package commands

import (
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/xharvest/internal/config"
	"github.com/ibeckermayer/xharvest/internal/store"
)

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of jobs to list")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history [job id]",
	Short: "List finished server jobs, or the links and outcomes of one job.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadOrCreate()
		db, err := store.New(config.Resolve(cfg.Files.Database))
		if err != nil {
			return err
		}
		defer db.Close()

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleRounded)

		if len(args) == 0 {
			jobs, err := db.RecentJobs(historyLimit)
			if err != nil {
				return err
			}
			t.AppendHeader(table.Row{"Job", "Kind", "Status", "Items", "Finished", "Error"})
			for _, j := range jobs {
				t.AppendRow(table.Row{j.ID, j.Kind, j.Status, j.ItemCount, j.FinishedAt.Local().Format(time.DateTime), j.Error})
			}
			t.Render()
			return nil
		}

		records, err := db.RecordsForJob(args[0])
		if err != nil {
			return err
		}
		if len(records) > 0 {
			t.AppendHeader(table.Row{"Date", "Username", "Link"})
			for _, r := range records {
				t.AppendRow(table.Row{r.Timestamp.In(cfg.Location()).Format(time.DateTime), r.Username, r.Link})
			}
			t.Render()
			return nil
		}

		outcomes, err := db.OutcomesForJob(args[0])
		if err != nil {
			return err
		}
		t.AppendHeader(table.Row{"Handle", "Outcome"})
		for _, o := range outcomes {
			t.AppendRow(table.Row{"@" + o.Handle, o.Outcome})
		}
		t.Render()
		return nil
	},
}
