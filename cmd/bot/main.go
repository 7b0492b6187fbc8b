// Package main is the entry point for the trip bot.
// Its sole responsibility is wiring dependencies together. No business
// logic belongs here.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "tripbot:", err)
		stop()
		os.Exit(1)
	}
}
