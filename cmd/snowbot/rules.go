package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/snow-emergency-monitor/internal/domain"
)

func newRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Print the snow emergency parking rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			for _, rs := range domain.ParkingRules() {
				fmt.Fprintf(out, "%s (%s)\n", rs.Window.Label(), rs.Hours)
				for _, r := range rs.Rules {
					fmt.Fprintf(out, "  • %s\n", r)
				}
			}
			fmt.Fprintf(out, "\nMore: %s\nMap: %s\nHotline: %s\n", domain.RulesURL, domain.MapURL, domain.HotlineText)
			return nil
		},
	}
}
