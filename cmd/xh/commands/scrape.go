package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/xharvest/internal/config"
	"github.com/ibeckermayer/xharvest/internal/export"
	"github.com/ibeckermayer/xharvest/internal/scraper"
	"github.com/ibeckermayer/xharvest/internal/types"
)

var scrapeFlags struct {
	targets   string
	mode      string
	keywords  string
	startDate string
	startTime string
	endDate   string
	endTime   string
	out       string
}

func init() {
	f := scrapeCmd.Flags()
	f.StringVarP(&scrapeFlags.targets, "targets", "t", "", "comma separated handles, or listing URLs in list mode")
	f.StringVarP(&scrapeFlags.mode, "mode", "m", string(types.ModeProfile), "profile, profile-replies or list")
	f.StringVarP(&scrapeFlags.keywords, "keywords", "k", "", `keyword filter, e.g. "ai,chip;gpu": ',' joins terms that must all appear, ';' separates alternative groups`)
	f.StringVar(&scrapeFlags.startDate, "start", "", "first day, YYYY-MM-DD")
	f.StringVar(&scrapeFlags.startTime, "start-time", "", "HH:MM on the first day")
	f.StringVar(&scrapeFlags.endDate, "end", "", "last day, YYYY-MM-DD (defaults to start)")
	f.StringVar(&scrapeFlags.endTime, "end-time", "", "HH:MM on the last day")
	f.StringVarP(&scrapeFlags.out, "out", "o", "", "workbook path (defaults to links_<timestamp>.xlsx)")
	_ = scrapeCmd.MarkFlagRequired("targets")
	_ = scrapeCmd.MarkFlagRequired("start")
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape --targets <a,b> --start <YYYY-MM-DD> [--end <YYYY-MM-DD>] [-o out.xlsx]",
	Short: "Scrape post links within a time window and write them to a workbook.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadOrCreate()

		mode, err := types.ParseMode(scrapeFlags.mode)
		if err != nil {
			return err
		}
		endDate := scrapeFlags.endDate
		if endDate == "" {
			endDate = scrapeFlags.startDate
		}
		start, end, err := types.ParseWindow(scrapeFlags.startDate, scrapeFlags.startTime, endDate, scrapeFlags.endTime, cfg.Location())
		if err != nil {
			return err
		}
		req := types.ScrapeRequest{
			Targets:  types.SplitTargets(scrapeFlags.targets),
			Mode:     mode,
			Keywords: scrapeFlags.keywords,
			Start:    start,
			End:      end,
		}
		if err := req.Validate(); err != nil {
			return err
		}

		out := scrapeFlags.out
		if out == "" {
			out = fmt.Sprintf("links_%s.xlsx", time.Now().Format("20060102_150405"))
		}
		if out, err = filepath.Abs(out); err != nil {
			return err
		}

		ctx := cmd.Context()
		m, page, err := session(ctx, cfg, "scraper", cfg.Browser.ScraperProfileDir)
		if err != nil {
			return err
		}
		defer m.Close()

		runner := scraper.NewRunner(scraper.NewFeedScanner(cfg.Location()), export.NewWorkbook())
		runner.OutputPath = out

		result, err := runner.Run(ctx, scraper.NewChromeFeed(page), req, printProgress, func() bool { return ctx.Err() != nil })
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return err
		}
		if result.Count == 0 {
			logrus.Warn("No posts matched; nothing written")
			return nil
		}
		logrus.Infof("Wrote %d links to %s in %s", result.Count, out, result.Elapsed.Round(time.Second))
		return nil
	},
}
