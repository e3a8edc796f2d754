package main

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/nimbusfs/blockauth/pkg/master"
	"github.com/nimbusfs/blockauth/pkg/tokenauth"
	"github.com/spf13/cobra"
)

var mintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Mint a block access token from a master's checkpoint directory",
	Long: `mint opens a master's on-disk key registry checkpoint and mints
a single token, without starting the rotation loop or any server. It
is meant for operators testing token verification out of band, not
for production issuance (which a running serve-master handles).`,
	RunE: runMint,
}

func init() {
	mintCmd.Flags().String("data-dir", "./data/master", "Master's checkpoint directory")
	mintCmd.Flags().Int("nn-index", 0, "Authority index the checkpoint belongs to")
	mintCmd.Flags().String("user", "", "User ID to mint for (required)")
	mintCmd.Flags().String("pool", "", "Block pool ID (required)")
	mintCmd.Flags().Int64("block", 0, "Block ID (required)")
	mintCmd.Flags().String("modes", "READ", "Comma-separated access modes: READ,WRITE,COPY,REPLACE")
	_ = mintCmd.MarkFlagRequired("user")
	_ = mintCmd.MarkFlagRequired("pool")
	_ = mintCmd.MarkFlagRequired("block")
}

func runMint(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	nnIndex, _ := cmd.Flags().GetInt("nn-index")
	user, _ := cmd.Flags().GetString("user")
	pool, _ := cmd.Flags().GetString("pool")
	blockID, _ := cmd.Flags().GetInt64("block")
	modesFlag, _ := cmd.Flags().GetString("modes")

	modes, err := parseModes(modesFlag)
	if err != nil {
		return err
	}

	m, err := master.NewMaster(master.Config{DataDir: dataDir, NNIndex: nnIndex})
	if err != nil {
		return fmt.Errorf("open master checkpoint: %w", err)
	}
	defer m.Stop()

	ref := tokenauth.BlockReference{PoolID: pool, BlockID: blockID}
	tok, err := m.GenerateToken(user, ref, modes)
	if err != nil {
		return fmt.Errorf("mint token: %w", err)
	}

	fmt.Printf("identifier: %s\n", base64.StdEncoding.EncodeToString(tok.Identifier))
	fmt.Printf("password:   %s\n", base64.StdEncoding.EncodeToString(tok.Password))
	fmt.Printf("kind:       %s\n", tok.Kind)
	return nil
}

func parseModes(s string) ([]tokenauth.AccessMode, error) {
	var modes []tokenauth.AccessMode
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(strings.ToUpper(part))
		if part == "" {
			continue
		}
		switch part {
		case "READ":
			modes = append(modes, tokenauth.AccessRead)
		case "WRITE":
			modes = append(modes, tokenauth.AccessWrite)
		case "COPY":
			modes = append(modes, tokenauth.AccessCopy)
		case "REPLACE":
			modes = append(modes, tokenauth.AccessReplace)
		default:
			return nil, fmt.Errorf("unknown access mode %q", part)
		}
	}
	if len(modes) == 0 {
		return nil, fmt.Errorf("at least one access mode is required")
	}
	return modes, nil
}
