package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/maltedev/rewe-discounts/internal/rewe"
)

func newMarketsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "markets <zip>",
		Short: "Lists all markets in or near a zip code (PLZ) and their IDs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			zip := args[0]
			if err := rewe.ValidateZip(zip); err != nil {
				return err
			}

			client, cleanup := a.newClient(cmd.Context())
			defer cleanup()

			markets, err := client.SearchMarkets(cmd.Context(), zip)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(a.stdout)
			t.AppendHeader(table.Row{"ID", "Location"})
			for _, m := range markets {
				t.AppendRow(table.Row{m.ID, fmt.Sprintf("%s, %s, %s %s", m.Name, m.Street, m.ZipCode, m.City)})
			}
			t.SetStyle(table.StyleRounded)
			t.Render()

			fmt.Fprintf(a.stdout, "\nPlease choose the right market and its ID from above.\n\n"+
				"Example program call to fetch all discounts from a market:\n"+
				"  rewe-discounts offers --market-id %s --output-file \"Angebote Rewe.md\"\n", markets[0].ID)
			return nil
		},
	}
}
