// Command issuetrend keeps per-day timelines of open GitHub issues and pull requests.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/huangsam/issuetrend/cmd"
	"github.com/huangsam/issuetrend/internal/iocache"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	cmd.SetStoreManager(iocache.Manager)
	err := cmd.Execute(ctx)

	if perr := cmd.StopProfiling(); perr != nil {
		fmt.Fprintln(os.Stderr, "⚠️  Warning:", perr)
	}
	iocache.CloseStores()
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}
