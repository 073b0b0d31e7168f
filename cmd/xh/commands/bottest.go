package commands

import (
	"bufio"
	"fmt"
	"os"

	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/xharvest/internal/browser"
	"github.com/ibeckermayer/xharvest/internal/config"
)

const botTestURL = "https://bot.sannysoft.com"

func init() {
	rootCmd.AddCommand(botTestCmd)
}

var botTestCmd = &cobra.Command{
	Use:   "bot-test",
	Short: "Open bot.sannysoft.com with the scraper's browser options to audit the fingerprint.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadOrCreate()
		logrus.Info("Opening bot.sannysoft.com with stealth browser options...")

		// visible window so the report can be read
		opts := browser.Options{ChromeMajor: cfg.Browser.ChromeMajor}

		allocCtx, cancel := chromedp.NewExecAllocator(cmd.Context(), opts.Allocator()...)
		defer cancel()

		ctx, cancel := chromedp.NewContext(allocCtx)
		defer cancel()

		err := chromedp.Run(ctx,
			chromedp.Navigate(botTestURL),
			chromedp.WaitVisible("body", chromedp.ByQuery),
		)
		if err != nil {
			return fmt.Errorf("navigate: %w", err)
		}

		fmt.Println("Press Enter to close the browser...")
		_, _ = bufio.NewReader(os.Stdin).ReadString('\n')

		logrus.Info("Done.")
		return nil
	},
}
