package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/storacha/devchain/cmd/cli"
)

func main() {
	// the run command waits on its own signal handling; this only cancels in flight
	// work such as dialing a chain or extracting a snapshot
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cli.ExecuteContext(ctx)
}
