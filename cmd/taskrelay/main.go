// Package main provides the taskrelay command relay server. It bridges
// automation callers (scripts, agents, test harnesses) and a poll-only
// browser executor: callers POST commands to a local endpoint, the executor
// polls for them one at a time and posts results back.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/entrhq/taskrelay/pkg/batch"
	appconfig "github.com/entrhq/taskrelay/pkg/config"
	"github.com/entrhq/taskrelay/pkg/logging"
	"github.com/entrhq/taskrelay/pkg/relay"
	"github.com/entrhq/taskrelay/pkg/server"
)

const version = "0.1.0"

// flags holds the command line overrides applied on top of the config file.
type flags struct {
	Addr        string
	ConfigPath  string
	Timeout     time.Duration
	ShowVersion bool
}

func main() {
	f := parseFlags()

	if f.ShowVersion {
		fmt.Printf("taskrelay v%s\n", version)
		return
	}

	cfg, err := loadConfig(f)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down gracefully...")
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("Relay error: %v", err)
	}
}

func parseFlags() *flags {
	f := &flags{}

	flag.StringVar(&f.Addr, "addr", "", "Listen address (default: 127.0.0.1:8766 or config file value)")
	flag.StringVar(&f.ConfigPath, "config", "", "Path to YAML configuration file (optional)")
	flag.DurationVar(&f.Timeout, "timeout", 0, "Single-command wait deadline (default: 30s or config file value)")
	flag.BoolVar(&f.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "taskrelay - command relay for poll-only browser executors\n\n")
		fmt.Fprintf(os.Stderr, "Usage: taskrelay [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEndpoints:\n")
		fmt.Fprintf(os.Stderr, "  POST /command   Submit a command (blocks until result or timeout)\n")
		fmt.Fprintf(os.Stderr, "  GET  /command   Executor polls for the pending command\n")
		fmt.Fprintf(os.Stderr, "  POST /result    Executor posts a command result\n")
		fmt.Fprintf(os.Stderr, "  POST /batch     Run an ordered command list, fail-fast\n")
		fmt.Fprintf(os.Stderr, "\nExample:\n")
		fmt.Fprintf(os.Stderr, "  curl -X POST http://127.0.0.1:8766/command -d '{\"tool\":\"ping\"}'\n")
	}

	flag.Parse()
	return f
}

// loadConfig builds the effective configuration: file (if given), then flag
// overrides, then validation defaults.
func loadConfig(f *flags) (*appconfig.Config, error) {
	cfg := appconfig.Default()
	if f.ConfigPath != "" {
		loaded, err := appconfig.Load(f.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if f.Addr != "" {
		cfg.Addr = f.Addr
	}
	if f.Timeout > 0 {
		cfg.CommandTimeout = appconfig.Duration(f.Timeout)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *appconfig.Config) error {
	var logger *logging.Logger
	if cfg.Logging.Enabled {
		l, err := logging.NewLogger("relay")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: file logging unavailable: %v\n", err)
		} else {
			logger = l
			defer logger.Close()
		}
	}

	rly := relay.New(cfg.CommandTimeout.Std(), logger)
	seq := batch.NewSequencer(rly, cfg.BatchStepTimeout.Std(), logger)
	sink := logging.NewMemorySink(cfg.Logging.SinkCapacity)

	srv, err := server.New(cfg, rly, seq, sink, logger)
	if err != nil {
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.ListenAndServe()
	}()

	fmt.Printf("taskrelay v%s listening on http://%s\n", version, cfg.Addr)

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
