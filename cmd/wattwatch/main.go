// Command wattwatch syncs Wattwatchers energy data into TimescaleDB and
// serves it over gRPC, or queries the API directly.
//
// The service supports:
//   - Paced, retrying access to the telemetry API
//   - Long-energy sync on a cron schedule, resuming from the newest stored bucket
//   - Bucketed aggregation (MIN, MAX, AVG, SUM) of stored readings over gRPC
//   - Prometheus metrics
//
// Usage:
//
//	wattwatch [flags]
//
// The flags are:
//
//	-config string
//	      path to config file (default "config.yaml")
//	-mode string
//	      "sync" runs the sync daemon, "query" prints long energy as JSON (default "sync")
//	-device string
//	      device id for query mode
//	-from, -to string
//	      RFC 3339 range for query mode (default: the last 24 hours)
//	-granularity string
//	      long-energy granularity for query mode (default "15m")
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tejusbharadwaj/wattwatch/internal/api"
	"github.com/tejusbharadwaj/wattwatch/internal/client"
	"github.com/tejusbharadwaj/wattwatch/internal/config"
	"github.com/tejusbharadwaj/wattwatch/internal/database"
	server "github.com/tejusbharadwaj/wattwatch/internal/grpc"
	"github.com/tejusbharadwaj/wattwatch/internal/logging"
	"github.com/tejusbharadwaj/wattwatch/internal/models"
	"github.com/tejusbharadwaj/wattwatch/internal/scheduler"
)

type Flags struct {
	ConfigPath  string
	Mode        string
	Device      string
	From        string
	To          string
	Granularity string
}

func parseFlags() *Flags {
	f := &Flags{}

	flag.StringVar(&f.ConfigPath, "config", "config.yaml", "Path to config file")
	flag.StringVar(&f.Mode, "mode", "sync", "sync or query")
	flag.StringVar(&f.Device, "device", "", "Device id (query mode)")
	flag.StringVar(&f.From, "from", "", "Range start, RFC 3339 (query mode)")
	flag.StringVar(&f.To, "to", "", "Range end, RFC 3339 (query mode)")
	flag.StringVar(&f.Granularity, "granularity", "15m", "Long-energy granularity (query mode)")

	flag.Parse()

	return f
}

func main() {
	flags := parseFlags()

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch flags.Mode {
	case "sync":
		err = serve(ctx, cfg, logger)
	case "query":
		err = query(ctx, cfg, flags, logger)
	default:
		err = fmt.Errorf("unknown mode %q", flags.Mode)
	}
	if err != nil {
		logger.WithError(err).Fatal("wattwatch failed")
	}
}

func query(ctx context.Context, cfg *config.Config, flags *Flags, logger *logrus.Logger) error {
	if flags.Device == "" {
		return errors.New("-device is required in query mode")
	}
	granularity, err := models.ParseGranularity(flags.Granularity)
	if err != nil {
		return err
	}

	end := time.Now()
	start := end.Add(-24 * time.Hour)
	if flags.From != "" {
		if start, err = time.Parse(time.RFC3339, flags.From); err != nil {
			return fmt.Errorf("invalid -from: %w", err)
		}
	}
	if flags.To != "" {
		if end, err = time.Parse(time.RFC3339, flags.To); err != nil {
			return fmt.Errorf("invalid -to: %w", err)
		}
	}

	c, err := client.New(cfg.API, client.WithLogger(logger))
	if err != nil {
		return err
	}
	series, err := c.LongEnergy(ctx, flags.Device, start, end, client.LongEnergyOptions{Granularity: granularity})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(series.Records)
}

func serve(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	repo, err := database.NewPostgresRepo(cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("failed to create repository: %w", err)
	}
	defer repo.Close()
	repo.SetMaxOpenConns(cfg.Database.MaxConnections)

	if err := repo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to prepare schema: %w", err)
	}

	c, err := client.New(cfg.API,
		client.WithLogger(logger),
		client.WithMetrics(api.NewMetrics(registry)),
	)
	if err != nil {
		return err
	}

	sched, err := scheduler.New(c, repo, cfg.Sync, logger)
	if err != nil {
		return err
	}

	srv, health, err := server.SetupServer(repo, cfg.Server, logger, registry)
	if err != nil {
		return fmt.Errorf("failed to setup server: %w", err)
	}

	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.WithField("port", cfg.Server.Port).Info("Starting gRPC server")
		return srv.Serve(lis)
	})

	g.Go(func() error {
		logger.WithField("port", cfg.Server.MetricsPort).Info("Starting metrics server")
		if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		// Catch up once before handing over to the schedule.
		if err := sched.SyncAll(gctx); err != nil {
			logger.WithError(err).Warn("Initial sync incomplete")
		}
		if err := sched.Start(); err != nil {
			return fmt.Errorf("scheduler error: %w", err)
		}
		<-gctx.Done()
		sched.Stop()
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Gracefully stopping server...")
		health.Shutdown()
		srv.GracefulStop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("Server stopped")
	return err
}
