package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mantonx/mediatags/internal/app"
	"github.com/mantonx/mediatags/internal/config"
	"github.com/spf13/cobra"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "mediatags",
		Short:         "Layered tag indexing for media assets",
		Long:          "mediatags catalogs media files, runs scan profiles over them and keeps a per-layer tag index.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("MEDIATAGS_CONFIG"), "path to a YAML or JSON config file")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newProfilesCmd())
	rootCmd.AddCommand(newLayersCmd())
	rootCmd.AddCommand(newCatalogCmd())
	rootCmd.AddCommand(newIndexCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadApp reads the configuration and builds the application
func loadApp() (*app.App, error) {
	manager := config.GetConfigManager()
	if err := manager.LoadConfig(configPath); err != nil {
		return nil, err
	}
	return app.New(manager.GetConfig())
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
