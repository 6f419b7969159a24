// Command optsnap prints an option chain snapshot for one ticker as a single
// JSON document on standard output.
//
// Usage:
//
//	optsnap SYMBOL [MAX_DAYS] [EXPIRIES] [flags]
//
// The command always exits 0. When nothing useful can be produced the
// document carries a null spot, no rows and null metrics; the reason is
// logged to standard error.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	execute(ctx, newApp(os.Stdout, os.Stderr), os.Args[1:])
}
