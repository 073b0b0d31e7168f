package commands

import (
	"fmt"

	pkgbrowser "github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/xharvest/internal/config"
)

func init() {
	rootCmd.AddCommand(openCmd)
}

var openCmd = &cobra.Command{
	Use:       "open <config|data>",
	Short:     "Open the config file or the data directory.",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"config", "data"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			path string
			err  error
		)
		switch args[0] {
		case "config":
			config.LoadOrCreate()
			path, err = config.ConfigPath()
		case "data":
			path, err = config.ConfigDir()
		default:
			return fmt.Errorf("unknown target: %s", args[0])
		}
		if err != nil {
			return fmt.Errorf("resolve path: %w", err)
		}
		return pkgbrowser.OpenFile(path)
	},
}
