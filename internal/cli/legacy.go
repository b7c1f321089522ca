package cli

import (
	"github.com/spf13/cobra"

	"github.com/maltedev/rewe-discounts/internal/offers"
)

func newLegacyCommand(a *app) *cobra.Command {
	var rf reportFlags

	cmd := &cobra.Command{
		Use:   "legacy",
		Short: "Exports the nationwide offers of the mobile offer-search API",
		RunE: func(cmd *cobra.Command, args []string) error {
			highlights, err := a.loadHighlights(rf)
			if err != nil {
				return err
			}

			client, cleanup := a.newClient(cmd.Context())
			defer cleanup()

			report, err := offers.NewService(nil, a.logger).Run(cmd.Context(), &offers.OfferSearchSource{API: client}, highlights)
			if err != nil {
				return err
			}

			return a.writeReport(report, rf, len(highlights) > 0)
		},
	}

	cmd.Flags().StringVar(&rf.outputFile, "output-file", "Angebote Rewe API.md", "output file path")
	cmd.Flags().StringVar(&rf.highlights, "highlights", "", "file with products to highlight")
	cmd.Flags().StringVar(&rf.jsonFile, "json-file", "", "additionally write the report as JSON")
	cmd.Flags().BoolVar(&rf.print, "print", false, "print the result to the terminal")

	return cmd
}
