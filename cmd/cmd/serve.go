package cmd

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ostafen/sigcrawl/internal/config"
	"github.com/ostafen/sigcrawl/internal/logger"
	"github.com/ostafen/sigcrawl/internal/metrics"
	"github.com/ostafen/sigcrawl/internal/quarantine"
	"github.com/ostafen/sigcrawl/internal/server"
	"github.com/ostafen/sigcrawl/internal/signature"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func DefineServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the signature scanning server",
		Long: `The 'serve' command listens for single-shot JSON requests over TCP.
Each connection carries one CheckLocalFile or QuarantineLocalFile command and receives one response.
Settings are read from the flags, SIGCRAWL_* environment variables and an optional YAML config file.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         RunServe,
	}

	cmd.Flags().String("host", config.DefaultHost, "hostname to bind")
	cmd.Flags().IntP("port", "p", config.DefaultPort, "port to bind")
	cmd.Flags().IntP("threads", "t", config.DefaultThreads, "number of worker threads")
	cmd.Flags().StringP("quarantine", "q", config.DefaultQuarantineDir, "quarantine directory")
	cmd.Flags().Bool("logging", false, "enable logging to the log file")
	cmd.Flags().String("log-file", config.DefaultLogFile, "path of the log file")
	cmd.Flags().String("log-level", config.DefaultLogLevel, "minimum log level (DEBUG, INFO, WARN, ERROR)")
	cmd.Flags().Int("backlog", config.DefaultBacklog, "listen backlog")
	cmd.Flags().Int("queue-size", config.DefaultQueueSize, "connections waiting for a free worker")
	cmd.Flags().String("metrics-addr", "", "address of the Prometheus metrics endpoint (disabled if empty)")
	cmd.Flags().StringP("config", "c", "", "path of a YAML config file")

	return cmd
}

func RunServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return err
	}

	PrintLogo(cmd.OutOrStdout())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, cmd.OutOrStdout())
}

// serve runs the request server, and the metrics endpoint when configured,
// until ctx is done.
func serve(ctx context.Context, cfg config.ServerConfig, out io.Writer) error {
	log, logCloser, err := logger.Setup(cfg.LogPath(), logger.ParseLevel(cfg.LogLevel))
	if err != nil {
		return err
	}
	defer logCloser.Close()

	qm, err := quarantine.New(cfg.QuarantineDir)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(registry)

	handler := server.NewHandler(signature.NewChecker(), qm, log, m)
	console := logger.NewConsole(out)
	srv := server.New(cfg, handler, server.WithLogger(log), server.WithMetrics(m), server.WithConsole(console))

	if err := srv.Listen(); err != nil {
		return err
	}

	console.Infof("Starting server on %s with %d threads", srv.Addr(), cfg.Threads)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(srv.Serve)
	g.Go(func() error {
		<-gctx.Done()
		console.Infof("Shutting down server")
		return srv.Shutdown()
	})

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(registry))

		httpSrv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			console.Infof("Serving metrics on %s/metrics", cfg.MetricsAddr)
			if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		})
	}
	return g.Wait()
}
