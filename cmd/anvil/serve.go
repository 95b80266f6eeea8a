package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/forgepipe/anvil/pkg/log"
	"github.com/forgepipe/anvil/pkg/metrics"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose metrics and health endpoints for a running pipeline instance",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	env, err := openEnvironment(cfg.DataRoot)
	if err != nil {
		return err
	}

	store, err := env.idSource.LoadFromStorage(env.schema)
	if err != nil {
		return err
	}

	metrics.RegisterComponent("artifact_store", true, "")
	metrics.RegisterComponent("schema_set", true, "")

	collector := metrics.NewCollector(store, env.artifacts, 10*time.Second, log.Logger)
	collector.Start()
	defer collector.Stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.HandleFunc("/live", metrics.LivenessHandler())

	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	go func() {
		log.Logger.Info().Str("addr", cfg.MetricsAddr).Msg("serving metrics and health endpoints")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	fmt.Println("shutting down")
	return srv.Close()
}
