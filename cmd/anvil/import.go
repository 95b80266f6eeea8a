package main

import (
	"fmt"
	"path/filepath"

	"github.com/forgepipe/anvil/pkg/dataset"
	"github.com/forgepipe/anvil/pkg/idset"
	"github.com/forgepipe/anvil/pkg/importer"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <source-file>",
	Short: "Import a source file into the Data Set",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	sourcePath := args[0]
	ext := filepath.Ext(sourcePath)

	env, err := openEnvironment(cfg.DataRoot)
	if err != nil {
		return err
	}

	imp, ok := env.importers.ForExtension(ext)
	if !ok {
		return fmt.Errorf("no importer registered for extension %q", ext)
	}

	results, err := imp.ImportFile(importer.ImportContext{SourcePath: sourcePath})
	if err != nil {
		return fmt.Errorf("importing %s: %w", sourcePath, err)
	}

	store, err := env.idSource.LoadFromStorage(env.schema)
	if err != nil {
		return err
	}

	var created []idset.AssetId
	for name, result := range results {
		assetName := name
		if assetName == "" {
			assetName = filepath.Base(sourcePath)
		}
		id, err := store.CreateAsset(result.DefaultAsset.Schema, idset.Nil, assetName, dataset.Location{})
		if err != nil {
			return fmt.Errorf("creating asset for importable %q: %w", name, err)
		}
		for path, v := range result.DefaultAsset.Properties {
			if err := store.SetPropertyOverride(id, path, v); err != nil {
				return fmt.Errorf("setting %s on %s: %w", path, id, err)
			}
		}
		created = append(created, id)
	}

	if err := env.idSource.FlushToStorage(store, created); err != nil {
		return err
	}

	for _, id := range created {
		fmt.Println(id.Hex())
	}
	return nil
}
