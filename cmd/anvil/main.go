// Command anvil is the command-line surface over the asset pipeline: one
// binary playing each of the three process roles the pipeline is designed
// for — an editor-side importer, an offline builder, and a runtime loader
// — plus a serve mode that exposes metrics and health endpoints.
package main

import (
	"fmt"
	"os"

	"github.com/forgepipe/anvil/pkg/appconfig"
	"github.com/forgepipe/anvil/pkg/log"
	"github.com/spf13/cobra"
)

var cfg appconfig.Config

var rootCmd = &cobra.Command{
	Use:   "anvil",
	Short: "anvil is an offline asset pipeline and runtime asset loader",
	Long: `anvil turns authored asset data into built, content-addressed
artifacts and loads those artifacts at runtime behind reference-counted
handles.`,
}

func init() {
	appconfig.RegisterFlags(rootCmd.PersistentFlags())
	rootCmd.PersistentFlags().String("config", "", "path to a YAML config file")

	cobra.OnInitialize(loadConfig, initLogging)

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(serveCmd)
}

func loadConfig() {
	path, _ := rootCmd.PersistentFlags().GetString("config")
	loaded, err := appconfig.Load(path, rootCmd.PersistentFlags())
	if err != nil {
		fmt.Fprintf(os.Stderr, "anvil: %v\n", err)
		os.Exit(1)
	}
	cfg = loaded
}

func initLogging() {
	log.Init(log.Config{
		Level:      log.Level(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "anvil: %v\n", err)
		os.Exit(1)
	}
}
