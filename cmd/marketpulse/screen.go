package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"MarketPulse/internal/analysis"
	"MarketPulse/internal/model"
)

func newScreenCmd(a *app) *cobra.Command {
	var rule string
	var asJSON, signalOnly bool
	cmd := &cobra.Command{
		Use:   "screen",
		Short: "Run a screening rule over the swing sheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			col, err := a.buildCollector()
			if err != nil {
				return err
			}
			if rule == "" {
				rule = analysis.DefaultRuleName
			}
			cands, err := col.Candidates(ctx, rule)
			if err != nil {
				return err
			}
			if signalOnly {
				kept := cands[:0]
				for _, c := range cands {
					if c.Signal {
						kept = append(kept, c)
					}
				}
				cands = kept
			}
			if asJSON {
				return printJSON(cands)
			}
			return printCandidates(cands)
		},
	}
	cmd.Flags().StringVar(&rule, "rule", "", "Screening rule name (default "+analysis.DefaultRuleName+")")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the candidates as JSON")
	cmd.Flags().BoolVar(&signalOnly, "signal", false, "Only list candidates whose signal fired")
	return cmd
}

func printCandidates(cands []model.Candidate) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSECTOR\tCMP\tRSI\tMB SCORE\tSIGNAL")
	for _, c := range cands {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%.2f\t%.2f\t%t\n",
			c.ID, c.StockName, c.Sector, c.CMP, c.RSI, c.MBScore, c.Signal)
	}
	return tw.Flush()
}
