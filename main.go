package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sadewadee/kra-collector/runner"
	"github.com/sadewadee/kra-collector/runner/collectrunner"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner.Banner()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan

		log.Println("Received signal, shutting down...")

		cancel()
	}()

	cfg := runner.ParseConfig()

	runnerInstance, err := collectrunner.New(cfg)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")

		runner.Telemetry().Close()

		os.Exit(1)
	}

	egroup, ctx := errgroup.WithContext(ctx)

	egroup.Go(func() error {
		return runnerInstance.Run(ctx)
	})

	runErr := egroup.Wait()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer closeCancel()

	if err := runnerInstance.Close(closeCtx); err != nil {
		log.Printf("close failed: %v", err)
	}

	runner.Telemetry().Close()

	if runErr != nil {
		log.Fatalf("run failed: %v", runErr)
	}
}
