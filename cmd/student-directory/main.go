// student-directory keeps a local directory of students (name, place,
// contact number, photo) and serves it over HTTP or the command line.
//
// RUNNING:
//
//	go run ./cmd/student-directory --config=config/local.yaml serve
//	go run ./cmd/student-directory --config=config/local.yaml list asha
//
// or with the environment variable:
//
//	CONFIG_PATH=config/local.yaml go run ./cmd/student-directory list
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	// Ctrl+C / SIGTERM cancel ctx; every command watches cmd.Context().
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "student-directory: %v\n", err)
		os.Exit(1)
	}
}
