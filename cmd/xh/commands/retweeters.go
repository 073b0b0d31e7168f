package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/xharvest/internal/auth"
	"github.com/ibeckermayer/xharvest/internal/blocker"
	"github.com/ibeckermayer/xharvest/internal/config"
)

var blockAfterScan bool

func init() {
	retweetersCmd.Flags().BoolVar(&blockAfterScan, "block", false, "block every account found")
	rootCmd.AddCommand(retweetersCmd)
}

var retweetersCmd = &cobra.Command{
	Use:   "retweeters <post url>",
	Short: "List the accounts that reposted a post, optionally blocking them.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadOrCreate()
		ctx := cmd.Context()
		stop := func() bool { return ctx.Err() != nil }

		m, page, err := session(ctx, cfg, "blocker", cfg.Browser.BlockerProfileDir, auth.WithCookieImport())
		if err != nil {
			return err
		}
		defer m.Close()

		handles, err := blocker.NewRetweeterScanner().Scan(ctx, blocker.NewChromeRoster(page), args[0], printProgress, stop)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			logrus.Errorf("Scan ended early: %v", err)
		}
		fmt.Println(strings.Join(handles, "\n"))

		if !blockAfterScan || len(handles) == 0 {
			return err
		}

		report, err := blocker.NewAccountBlocker(cfg.BlockDelay()).Block(ctx, page, handles, printProgress, stop)
		fmt.Fprintln(os.Stderr)
		logrus.Infof("Blocked %d of %d accounts", report.Succeeded, report.Total)
		return err
	},
}
