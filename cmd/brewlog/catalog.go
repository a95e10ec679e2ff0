package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"brewlog/internal/achievement"

	"github.com/spf13/cobra"
)

func newCatalogCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print the embedded achievement catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := achievement.Default()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(c)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "ID\tCATEGORY\tRARITY\tPOINTS\tREQUIREMENT\n")
			malformed := 0
			for _, d := range c.Achievements {
				req := fmt.Sprintf("%s %s >= %g", d.Requirement.Type, d.Requirement.Field, d.Requirement.Target)
				if p := achievement.Evaluate([]achievement.Definition{d}, achievement.Stats{}, nil).Progress[0]; p.Malformed {
					req += " (malformed)"
					malformed++
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", d.ID, d.Category, d.Rarity, d.Points, req)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\nversion %d, %d achievements\n", c.Version, len(c.Achievements))
			if malformed > 0 {
				fmt.Fprintf(os.Stderr, "%d malformed definitions\n", malformed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
