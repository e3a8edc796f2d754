package main

import (
	"fmt"

	"github.com/nimbusfs/blockauth/pkg/storage"
	"github.com/spf13/cobra"
)

var inspectKeyCmd = &cobra.Command{
	Use:   "inspect-key",
	Short: "Print the key registry checkpoint in a master's data directory",
	RunE:  runInspectKey,
}

func init() {
	inspectKeyCmd.Flags().String("data-dir", "./data/master", "Master's checkpoint directory")
}

func runInspectKey(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")

	store, err := storage.NewCheckpointStore(dataDir)
	if err != nil {
		return fmt.Errorf("open checkpoint store: %w", err)
	}
	defer store.Close()

	nnIndex, ok, err := store.LoadNNIndex()
	if err != nil {
		return fmt.Errorf("load authority index: %w", err)
	}
	if ok {
		fmt.Printf("authority index: %d\n", nnIndex)
	} else {
		fmt.Println("authority index: (none persisted)")
	}

	env, err := store.LoadCheckpoint()
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	if env == nil {
		fmt.Println("no checkpoint found")
		return nil
	}

	fmt.Printf("enabled:             %v\n", env.IsEnabled)
	fmt.Printf("key_update_interval: %d ms\n", env.KeyUpdateInterval)
	fmt.Printf("token_lifetime:      %d ms\n", env.TokenLifetime)
	fmt.Printf("current_key_id:      %d\n", env.CurrentKey.KeyID)
	fmt.Printf("current_key_expiry:  %d\n", env.CurrentKey.ExpiryMs)
	fmt.Printf("total_keys:          %d\n", len(env.AllKeys))
	for _, k := range env.AllKeys {
		fmt.Printf("  key_id=%d expiry_ms=%d\n", k.KeyID, k.ExpiryMs)
	}
	return nil
}
