// Command xh is the command line companion of the xharvest server: one-shot
// scrapes and retweeter scans plus maintenance helpers.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/ibeckermayer/xharvest/cmd/xh/commands"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	commands.ExecuteContext(ctx)
}
