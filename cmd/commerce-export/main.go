package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/saturnines/commerce-export/pkg/config"
	"github.com/saturnines/commerce-export/pkg/core"
	"github.com/saturnines/commerce-export/pkg/logger"
)

const usage = `usage: commerce-export [flags] <command>

commands:
  run        export everything the config enables
  purchases  export the purchase table only
  feed       export the product feed only
  customers  export the customer table only
  count      print the size of every collection
  schedule   run exports on the configured cron schedule

flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("commerce-export", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	var (
		configPath  = fs.String("config", "export.yaml", "path to the export config")
		envFile     = fs.String("env", ".env", "env file loaded before the config is expanded")
		logLevel    = fs.String("log-level", "", "overrides log.level")
		runNow      = fs.Bool("run-now", false, "schedule: run once right away")
		metricsAddr = fs.String("metrics-addr", "", "schedule: serve /metrics on this address")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	command := fs.Arg(0)

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	cfg, err := config.NewDefaultLoader().Load(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	log := logger.New(cfg.Log, "commerce-export", stderr)

	tasks, ok := tasksFor(command, cfg)
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", command)
		fs.Usage()
		return 2
	}

	exporter, err := core.FromConfig(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to set up export")
		return 1
	}
	defer exporter.Close()

	switch command {
	case "count":
		counts, err := exporter.Counts(ctx)
		if err != nil {
			log.Error().Err(err).Msg("count failed")
			return 1
		}
		names := make([]string, 0, len(counts))
		for name := range counts {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(stdout, "%s\t%d\n", name, counts[name])
		}
		return 0

	case "schedule":
		if cfg.Schedule == "" {
			log.Error().Msg("schedule is not set in the config")
			return 1
		}
		scheduler, err := core.NewScheduler(cfg.Schedule, exporter, tasks, log)
		if err != nil {
			log.Error().Err(err).Msg("invalid schedule")
			return 1
		}
		if *metricsAddr != "" {
			srv := serveMetrics(*metricsAddr, exporter, log)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()
		}
		scheduler.Start(ctx, *runNow)
		return 0
	}

	res, err := exporter.Run(ctx, tasks)
	if err != nil {
		return 1
	}
	for _, path := range res.Artifacts {
		fmt.Fprintln(stdout, path)
	}
	return 0
}

// tasksFor maps a command to the artifacts it writes.
func tasksFor(command string, cfg *config.Export) (core.Tasks, bool) {
	switch command {
	case "run", "schedule":
		return core.TasksFromConfig(cfg), true
	case "purchases":
		return core.Tasks{Purchases: true}, true
	case "feed":
		return core.Tasks{Feed: true}, true
	case "customers":
		if cfg.Customers.File == "" {
			cfg.Customers.File = "customers.csv"
		}
		return core.Tasks{Customers: true}, true
	case "count":
		return core.Tasks{}, true
	}
	return core.Tasks{}, false
}

func serveMetrics(addr string, exporter *core.Exporter, log zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(exporter.Metrics().Registry(), promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	log.Info().Str("addr", addr).Msg("serving metrics")
	return srv
}
