package main

import (
	"context"
	"fmt"

	"github.com/forgepipe/anvil/pkg/idset"
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build <asset-id>",
	Short: "Run the registered builder for an asset and print the artifacts it produced",
	Args:  cobra.ExactArgs(1),
	RunE:  runBuild,
}

func runBuild(cmd *cobra.Command, args []string) error {
	assetID, err := idset.FromHex(args[0])
	if err != nil {
		return fmt.Errorf("parsing asset id: %w", err)
	}

	env, err := openEnvironment(cfg.DataRoot)
	if err != nil {
		return err
	}

	store, err := env.idSource.LoadFromStorage(env.schema)
	if err != nil {
		return err
	}

	produced, err := env.scheduler.RunBuilder(context.Background(), assetID, store, env.schema)
	if err != nil {
		return fmt.Errorf("building %s: %w", assetID, err)
	}

	for _, artifact := range produced {
		fmt.Printf("%s\ttype=%s\tdeps=%d\n", artifact.ID.Hex(), artifact.AssetType, len(artifact.Dependencies))
	}
	return nil
}
