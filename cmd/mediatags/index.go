package main

import (
	"encoding/json"
	"fmt"

	"github.com/mantonx/mediatags/internal/modules/tagindexmodule"
	"github.com/spf13/cobra"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Inspect and maintain the tag index",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()
			return printJSON(cmd.OutOrStdout(), a.Index.Stats())
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <asset-id>",
		Short: "Print every layer record of an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			layers := a.Index.GetLayersForAsset(args[0])
			if len(layers) == 0 {
				return fmt.Errorf("asset %s has no tags", args[0])
			}
			return printJSON(cmd.OutOrStdout(), layers)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "query <query.json>",
		Short:   "List assets matching a tag query",
		Example: `mediatags index query '{"include_any":{"ai_quick":["portrait"]},"exclude":{"basic":["unknown"]}}'`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var q tagindexmodule.Query
			if err := json.Unmarshal([]byte(args[0]), &q); err != nil {
				return fmt.Errorf("invalid query: %w", err)
			}

			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			for _, id := range a.Index.QueryAssets(q) {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear-layer <layer-id>",
		Short: "Remove a layer from every asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			a.Index.ClearLayer(args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "cleared layer %s\n", args[0])
			return nil
		},
	})

	return cmd
}
