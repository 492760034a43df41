// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	_ "net/http/pprof" // #nosec G108
	"os/signal"
	"syscall"
	"time"

	"github.com/blinklabs-io/degree"
	"github.com/blinklabs-io/degree/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "node")
	shutdownTimeout, err := cfg.ShutdownTimeoutDuration()
	if err != nil {
		return err
	}
	programID, err := cfg.ProgramID()
	if err != nil {
		return err
	}
	apiListenAddress := ""
	if cfg.ApiPort > 0 {
		apiListenAddress = fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.ApiPort)
	}
	d, err := degree.New(
		degree.NewConfig(
			degree.WithLogger(logger),
			degree.WithDatabasePath(cfg.DatabasePath),
			degree.WithBlobPlugin(cfg.BlobPlugin),
			degree.WithMetadataPlugin(cfg.MetadataPlugin),
			degree.WithProgramID(programID),
			degree.WithApiListenAddress(apiListenAddress),
			degree.WithShutdownTimeout(shutdownTimeout),
			// Enable metrics with default prometheus registry
			degree.WithPrometheusRegistry(prometheus.DefaultRegisterer),
			degree.WithTracing(cfg.Tracing),
			degree.WithTracingStdout(cfg.TracingStdout),
			degree.WithAutoReindex(!cfg.NoAutoReindex),
		),
	)
	if err != nil {
		return err
	}

	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	// The node and the metrics listener share a fate: either failing stops
	// the other
	runCtx, runCancel := context.WithCancel(signalCtx)
	defer runCancel()
	g, ctx := errgroup.WithContext(runCtx)
	if cfg.MetricsPort > 0 {
		metricsServer := newMetricsServer(
			fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.MetricsPort),
		)
		logger.Info(
			"serving prometheus metrics on "+metricsServer.Addr,
			"component", "node",
		)
		g.Go(func() error {
			err := metricsServer.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("metrics listener: %w", err)
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(
				context.Background(),
				shutdownTimeout,
			)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}
	g.Go(func() error {
		defer runCancel()
		return d.Run(ctx)
	})

	runErr := g.Wait()
	if runErr != nil {
		logger.Error("node error", "error", runErr)
	} else {
		logger.Info("signal received, initiating graceful shutdown")
	}
	if err := d.Stop(); err != nil {
		logger.Error("shutdown errors occurred", "error", err)
		return errors.Join(runErr, err)
	}
	if runErr != nil {
		return runErr
	}
	logger.Info("shutdown complete")
	return nil
}

// newMetricsServer serves prometheus metrics and pprof
func newMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	// pprof registers on the default mux
	mux.Handle("/debug/pprof/", http.DefaultServeMux)
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
