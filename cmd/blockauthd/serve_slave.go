package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nimbusfs/blockauth/pkg/log"
	"github.com/nimbusfs/blockauth/pkg/metrics"
	"github.com/nimbusfs/blockauth/pkg/slave"
	"github.com/spf13/cobra"
)

var serveSlaveCmd = &cobra.Command{
	Use:   "serve-slave",
	Short: "Run the block token slave daemon",
	Long: `serve-slave periodically pulls a key snapshot from a master
and verifies block access tokens locally, without contacting the
master on the verification path.`,
	RunE: runServeSlave,
}

func init() {
	serveSlaveCmd.Flags().String("master-url", "", "Base URL of the master's snapshot endpoint (required)")
	serveSlaveCmd.Flags().Int("nn-index", 0, "Authority index; ignored in the slave role, which accepts keys from any authority")
	serveSlaveCmd.Flags().Duration("poll-interval", time.Minute, "How often to refresh the key snapshot")
	serveSlaveCmd.Flags().String("health-addr", ":8083", "Address for the HTTP /metrics, /health and /ready endpoints")
	_ = serveSlaveCmd.MarkFlagRequired("master-url")
}

func runServeSlave(cmd *cobra.Command, args []string) error {
	masterURL, _ := cmd.Flags().GetString("master-url")
	nnIndex, _ := cmd.Flags().GetInt("nn-index")
	pollInterval, _ := cmd.Flags().GetDuration("poll-interval")
	healthAddr, _ := cmd.Flags().GetString("health-addr")

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.MasterURL != "" {
		masterURL = cfg.MasterURL
	}
	if cfg.NNIndex != 0 {
		nnIndex = cfg.NNIndex
	}
	if cfg.PollInterval != 0 {
		pollInterval = cfg.PollInterval
	}
	if cfg.HealthAddr != "" {
		healthAddr = cfg.HealthAddr
	}

	roleLog := log.WithRole("slave")
	roleLog.Info().Str("master_url", masterURL).Msg("starting slave")

	s, err := slave.NewSlave(slave.Config{
		MasterURL:    masterURL + "/v1/snapshot",
		NNIndex:      nnIndex,
		PollInterval: pollInterval,
	})
	if err != nil {
		return fmt.Errorf("create slave: %w", err)
	}
	defer s.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Refresh(ctx); err != nil {
		roleLog.Warn().Err(err).Msg("initial snapshot refresh failed, retrying in background")
	}
	go s.RunRefreshLoop(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	httpSrv := &http.Server{Addr: healthAddr, Handler: mux}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			roleLog.Error().Err(err).Msg("slave http server exited")
		}
	}()

	roleLog.Info().Msg("slave ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	roleLog.Info().Msg("shutting down slave")
	return httpSrv.Close()
}
