package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nimbusfs/blockauth/pkg/log"
	"github.com/nimbusfs/blockauth/pkg/master"
	"github.com/nimbusfs/blockauth/pkg/metrics"
	"github.com/nimbusfs/blockauth/pkg/transport"
	"github.com/spf13/cobra"
)

var serveMasterCmd = &cobra.Command{
	Use:   "serve-master",
	Short: "Run the block token master daemon",
	Long: `serve-master mints and rotates block access tokens, checkpoints
its key registry to disk, and serves it to slaves over HTTP.`,
	RunE: runServeMaster,
}

func init() {
	serveMasterCmd.Flags().String("data-dir", "./data/master", "Directory for the key registry checkpoint")
	serveMasterCmd.Flags().Int("nn-index", 0, "Authority index for multi-authority (HA) deployments")
	serveMasterCmd.Flags().Duration("key-update-interval", 10*time.Hour, "How often keys are rotated")
	serveMasterCmd.Flags().Duration("token-lifetime", 10*time.Hour, "Maximum lifetime of a minted token")
	serveMasterCmd.Flags().String("snapshot-addr", ":8081", "Address to serve key snapshots to slaves")
	serveMasterCmd.Flags().String("health-addr", ":8082", "Address for the gRPC health service")
}

func runServeMaster(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	nnIndex, _ := cmd.Flags().GetInt("nn-index")
	keyUpdateInterval, _ := cmd.Flags().GetDuration("key-update-interval")
	tokenLifetime, _ := cmd.Flags().GetDuration("token-lifetime")
	snapshotAddr, _ := cmd.Flags().GetString("snapshot-addr")
	healthAddr, _ := cmd.Flags().GetString("health-addr")

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.DataDir != "" {
		dataDir = cfg.DataDir
	}
	if cfg.NNIndex != 0 {
		nnIndex = cfg.NNIndex
	}
	if cfg.KeyUpdateInterval != 0 {
		keyUpdateInterval = cfg.KeyUpdateInterval
	}
	if cfg.TokenLifetime != 0 {
		tokenLifetime = cfg.TokenLifetime
	}
	if cfg.HTTPAddr != "" {
		snapshotAddr = cfg.HTTPAddr
	}
	if cfg.HealthAddr != "" {
		healthAddr = cfg.HealthAddr
	}

	roleLog := log.WithRole("master")
	roleLog.Info().Str("data_dir", dataDir).Int("nn_index", nnIndex).Msg("starting master")

	m, err := master.NewMaster(master.Config{
		DataDir:           dataDir,
		NNIndex:           nnIndex,
		KeyUpdateInterval: keyUpdateInterval,
		TokenLifetime:     tokenLifetime,
	})
	if err != nil {
		return fmt.Errorf("create master: %w", err)
	}
	defer m.Stop()

	go m.RunRotationLoop()

	pub := transport.NewHTTPPublisher(m)
	mux := http.NewServeMux()
	mux.Handle("/v1/snapshot", pub.Handler())
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())

	httpSrv := &http.Server{Addr: snapshotAddr, Handler: mux}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			roleLog.Error().Err(err).Msg("snapshot server exited")
		}
	}()

	healthSrv := transport.NewHealthServer("blockauth.master")
	go func() {
		if err := healthSrv.Start(healthAddr); err != nil {
			roleLog.Error().Err(err).Msg("health server exited")
		}
	}()

	roleLog.Info().Str("snapshot_addr", snapshotAddr).Str("health_addr", healthAddr).Msg("master ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	roleLog.Info().Msg("shutting down master")
	healthSrv.Stop()
	return httpSrv.Close()
}
