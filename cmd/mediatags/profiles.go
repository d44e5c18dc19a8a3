package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mantonx/mediatags/internal/modules/scanprofilemodule"
	"github.com/spf13/cobra"
)

func newProfilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List and edit scan profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()
			return printJSON(cmd.OutOrStdout(), a.Profiles.ListProfiles())
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "save <id> <profile.json>",
		Short: "Create or replace a profile from a JSON file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			var profile scanprofilemodule.Profile
			if err := json.Unmarshal(data, &profile); err != nil {
				return fmt.Errorf("invalid profile document: %w", err)
			}

			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Profiles.SaveProfile(args[0], profile)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Profiles.DeleteProfile(args[0])
		},
	})

	return cmd
}

func newLayersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "layers",
		Short: "List registered tag layers",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			for _, id := range a.Registry.LayerIDs() {
				desc, _ := a.Registry.GetLayer(id)
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %-12s %s\n", id, desc.Generator, desc.Name)
			}
			return nil
		},
	}
}
