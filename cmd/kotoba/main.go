package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"kotoba/internal/services"
)

func main() {
	// A missing .env file is the normal case.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(reportError(err))
	}
}

// reportError prints err for the user and returns the process exit code.
func reportError(err error) int {
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "cancelled by user")
		return 130
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	if class := services.Classify(err); class != "unknown" {
		fmt.Fprintln(os.Stderr, "Hint:", services.FailureHint(err))
	}
	return 1
}
