package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/mantonx/mediatags/internal/modules/catalogmodule"
	"github.com/spf13/cobra"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the asset catalog",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "import <dir>",
		Short: "Catalog every media file below a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.Catalog.ImportDirectory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	})

	var profileID string
	watch := &cobra.Command{
		Use:   "watch <dir>...",
		Short: "Catalog new media files as they appear, optionally scanning them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if profileID != "" {
				if _, ok := a.Profiles.GetProfile(profileID); !ok {
					return fmt.Errorf("unknown profile %q", profileID)
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			onAdded := func(asset catalogmodule.Asset) {
				fmt.Fprintf(cmd.OutOrStdout(), "added %s %s\n", asset.ID, asset.Path)
				if profileID == "" {
					return
				}
				if _, err := a.Jobs.Start(profileID, []string{asset.ID}); err != nil {
					a.Logger.Error("failed to queue scan", "asset", asset.ID, "error", err)
				}
			}

			watcher, err := catalogmodule.NewDirectoryWatcher(a.Catalog, onAdded, a.Logger)
			if err != nil {
				return err
			}
			for _, dir := range args {
				if err := watcher.Add(dir); err != nil {
					return err
				}
			}

			if err := a.Start(ctx); err != nil {
				return err
			}
			watcher.Run(ctx)
			return nil
		},
	}
	watch.Flags().StringVar(&profileID, "profile", "", "scan profile to run on each new asset")
	cmd.AddCommand(watch)

	return cmd
}
