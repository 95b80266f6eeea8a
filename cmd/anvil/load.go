package main

import (
	"fmt"
	"time"

	"github.com/forgepipe/anvil/pkg/assetstorage"
	"github.com/forgepipe/anvil/pkg/demoplugins"
	"github.com/forgepipe/anvil/pkg/events"
	"github.com/forgepipe/anvil/pkg/idset"
	"github.com/forgepipe/anvil/pkg/loader"
	"github.com/forgepipe/anvil/pkg/log"
	"github.com/spf13/cobra"
)

var loadCmd = &cobra.Command{
	Use:   "load <artifact-id>",
	Short: "Load a built artifact at runtime and print its decoded value",
	Args:  cobra.ExactArgs(1),
	RunE:  runLoad,
}

func runLoad(cmd *cobra.Command, args []string) error {
	artifactID, err := idset.FromHex(args[0])
	if err != nil {
		return fmt.Errorf("parsing artifact id: %w", err)
	}

	env, err := openEnvironment(cfg.DataRoot)
	if err != nil {
		return err
	}

	transformStore := assetstorage.NewTypedStore(demoplugins.DecodeTransform)
	registry := assetstorage.NewRegistry()
	assetstorage.Register(registry, demoplugins.TransformAssetType, transformStore)

	l := loader.New(env.artifacts, registry, events.NewBroker(), log.Logger)
	defer l.Close()

	h := l.AddRef(artifactID, loader.Strong)
	defer h.Drop()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		switch l.State(artifactID) {
		case loader.Committed:
			value, ok := transformStore.Get(artifactID)
			if !ok {
				return fmt.Errorf("artifact %s committed but not found in its typed store", artifactID)
			}
			fmt.Printf("%+v\n", value)
			return nil
		case loader.Unloaded:
			if lastErr := l.LastError(artifactID); lastErr != nil {
				return lastErr
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	return fmt.Errorf("timed out waiting for %s to load", artifactID)
}
