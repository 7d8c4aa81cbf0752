// demogen seeds a CRM with deterministic synthetic sales activity.
//
// Usage:
//
//	demogen run -c <config.yaml> [--env sandbox] [--concurrency 5] [--max-opps 200]
//	demogen run --resume <run-id>
//	demogen dry-run -c <config.yaml>
//	demogen status --run-id <run-id>
//	demogen reset --run-id <run-id> [--yes]
//	demogen smoke -c <config.yaml> --opp-id <id>
//	demogen plan -c <config.yaml> --opp-id <id>
//	demogen serve
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}
