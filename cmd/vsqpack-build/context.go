package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// interruptibleContext returns a context canceled on SIGINT or SIGTERM, so a
// long-running TTMP/loose-file ingestion loop can check ctx.Err() between
// entries instead of leaving the dump half-written on Ctrl-C.
func interruptibleContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		// A second signal terminates immediately, in case cleanup hangs.
		signal.Stop(sig)
		cancel()
	}()
	return ctx, cancel
}
