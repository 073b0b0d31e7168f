package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/xharvest/internal/auth"
	"github.com/ibeckermayer/xharvest/internal/browser"
	"github.com/ibeckermayer/xharvest/internal/config"
	"github.com/ibeckermayer/xharvest/internal/types"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "xh",
	Short: "xh runs xharvest scrapes and scans from the terminal.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.SetLogLevel(config.ParseLogLevel(logLevel))
		config.UseTerminalFormatter()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", os.Getenv("LOG_LEVEL"), "debug, info, warn or error")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// session starts an authenticated browser on the given profile dir
func session(ctx context.Context, cfg *config.Config, name, profileDir string, opts ...auth.ManagerOption) (*auth.Manager, browser.Page, error) {
	creds, err := config.LoadCredentials(config.Resolve(cfg.Files.Credentials))
	if err != nil {
		return nil, nil, err
	}

	m := auth.NewManager(name, browser.Launch, browser.Options{
		Headless:    cfg.Browser.Headless,
		ProfileDir:  config.Resolve(profileDir),
		ChromeMajor: cfg.Browser.ChromeMajor,
	}, auth.NewCookieStore(config.Resolve(cfg.Files.Cookies)), opts...)

	page, err := m.Acquire(ctx, creds)
	if err != nil {
		m.Close()
		return nil, nil, err
	}
	return m, page, nil
}

// printProgress logs engine progress on one line
var printProgress = types.ObserverFunc(func(p types.Progress) {
	fmt.Fprintf(os.Stderr, "\r%-10s %d/%d  found %d  %s\033[K", p.Phase, p.Current, p.Total, p.Count, p.LastItem)
})
