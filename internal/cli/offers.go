package cli

import (
	"github.com/spf13/cobra"

	"github.com/maltedev/rewe-discounts/internal/offers"
	"github.com/maltedev/rewe-discounts/internal/rewe"
)

func newOffersCommand(a *app) *cobra.Command {
	var (
		rf       reportFlags
		marketID string
		strategy string
		archive  bool
	)

	cmd := &cobra.Command{
		Use:   "offers",
		Short: "Exports the current discounts of a market",
		Long: `Exports the current discounts of a market.

The elegant strategy uses one bulk query. The less-elegant strategy lists all
offer ids and queries the details of every offer, which takes a while. The
default auto strategy tries the elegant way first and falls back.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rewe.ValidateMarketID(marketID); err != nil {
				return err
			}

			highlights, err := a.loadHighlights(rf)
			if err != nil {
				return err
			}

			client, cleanup := a.newClient(cmd.Context())
			defer cleanup()

			src, err := offers.MarketSource(client, marketID, strategy, a.logger)
			if err != nil {
				return err
			}

			var store offers.SnapshotStore
			if archive {
				db, err := a.openDatabase(cmd.Context())
				if err != nil {
					return err
				}
				defer db.Close()
				store = a.snapshotRepository(db)
			}

			report, err := offers.NewService(store, a.logger).Run(cmd.Context(), src, highlights)
			if err != nil {
				return err
			}

			return a.writeReport(report, rf, len(highlights) > 0)
		},
	}

	cmd.Flags().StringVar(&marketID, "market-id", "", "market ID, obtain it with the markets command")
	cmd.Flags().StringVar(&rf.outputFile, "output-file", "", "output file path")
	cmd.Flags().StringVar(&rf.highlights, "highlights", "", `products mentioned in this file, e.g. "Joghurt", are highlighted`)
	cmd.Flags().StringVar(&rf.jsonFile, "json-file", "", "additionally write the report as JSON")
	cmd.Flags().BoolVar(&rf.print, "print", false, "print the result to the terminal")
	cmd.Flags().StringVar(&strategy, "strategy", offers.StrategyAuto, "auto, elegant or less-elegant")
	cmd.Flags().BoolVar(&archive, "archive", false, "store the result in the offer history database")
	_ = cmd.MarkFlagRequired("market-id")
	_ = cmd.MarkFlagRequired("output-file")

	return cmd
}
