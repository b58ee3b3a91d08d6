// Command snowbot watches the City of Minneapolis website for snow emergency
// declarations and announces each parking-rule window once.
package main

import (
	"os"
	_ "time/tzdata"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "snowbot",
		Short:        "Minneapolis snow emergency monitor",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newCheckCmd(), newRulesCmd())
	return root
}
