package cli

import (
	"fmt"
	"time"

	"github.com/maltedev/rewe-discounts/internal/catalog"
	"github.com/maltedev/rewe-discounts/internal/models"
	"github.com/maltedev/rewe-discounts/internal/output"
	"github.com/maltedev/rewe-discounts/internal/render"
)

// reportFlags are shared by every command that writes a discount file.
type reportFlags struct {
	outputFile string
	highlights string
	jsonFile   string
	print      bool
}

func (a *app) loadHighlights(f reportFlags) ([]string, error) {
	if f.highlights == "" {
		return nil, nil
	}
	patterns, err := catalog.LoadHighlights(f.highlights, a.logger)
	if err != nil {
		return nil, fmt.Errorf("highlights file %q not found, please check for typos or create it and write one product per line: %w", f.highlights, err)
	}
	if len(patterns) == 0 {
		fmt.Fprintf(a.stdout, "WARNING: No product highlights in file %q found. Ignoring user request to highlight and continuing anyway.\n", f.highlights)
	}
	return patterns, nil
}

// writeReport renders the report to the output file and prints the summary line.
func (a *app) writeReport(report *models.Report, f reportFlags, highlighted bool) error {
	body, err := render.Markdown(report, time.Now())
	if err != nil {
		return err
	}

	if err := output.WriteFile(f.outputFile, body); err != nil {
		return fmt.Errorf("something went wrong while writing to file %q: %w", f.outputFile, err)
	}

	if f.jsonFile != "" {
		if err := output.WriteJSON(f.jsonFile, report); err != nil {
			return err
		}
	}

	if f.print {
		styled, err := render.Terminal(body, 0)
		if err != nil {
			a.logger.Warn("failed to style output, printing plain markdown", "error", err)
			styled = string(body)
		}
		fmt.Fprintln(a.stdout, styled)
	}

	if highlighted {
		fmt.Fprintf(a.stdout, "OK: Wrote %d discounts to file %q and highlighted %d.\n",
			report.ProductCount(), f.outputFile, report.HighlightCount())
	} else {
		fmt.Fprintf(a.stdout, "OK: Wrote %d discounts to file %q.\n", report.ProductCount(), f.outputFile)
	}
	return nil
}
