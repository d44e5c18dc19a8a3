package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newScanCmd() *cobra.Command {
	var importDir string

	cmd := &cobra.Command{
		Use:   "scan <profile> [asset-id...]",
		Short: "Run a scan profile over explicit assets or the profile filter",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if importDir != "" {
				result, err := a.Catalog.ImportDirectory(ctx, importDir)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d assets (%d skipped, %d failed)\n",
					result.Added, result.Skipped, result.Failed)
			}

			profileID := args[0]
			if _, ok := a.Profiles.GetProfile(profileID); !ok {
				return fmt.Errorf("unknown profile %q (available: %v)", profileID, a.Profiles.ProfileIDs())
			}

			processed := a.Profiles.RunProfile(ctx, profileID, args[1:])
			fmt.Fprintf(cmd.OutOrStdout(), "%s: processed %d asset layer(s)\n", profileID, processed)
			return nil
		},
	}
	cmd.Flags().StringVar(&importDir, "import", "", "catalog this directory before scanning")
	return cmd
}
