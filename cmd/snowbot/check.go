package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/snow-emergency-monitor/internal/config"
	"github.com/couchcryptid/snow-emergency-monitor/internal/observability"
	"github.com/couchcryptid/snow-emergency-monitor/internal/pipeline"
)

func newCheckCmd() *cobra.Command {
	var notify bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run a single check and print the result",
		Long: `Runs one gather-reconcile cycle against the city website and prints the
outcome. Without --notify this is a dry run: persisted state is read but not
updated and no alert is sent.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := observability.NewLoggerTo(cmd.ErrOrStderr(), cfg)
			metrics := observability.NewMetricsWith(prometheus.NewRegistry())

			a, err := buildApp(cmd.Context(), cfg, logger, metrics, !notify)
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.monitor.Check(cmd.Context(), pipeline.TriggerManual)
			if err != nil {
				return err
			}

			if !notify {
				report.Notified = false
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, report.Summary())
			if report.Alert == nil {
				return nil
			}
			if !notify {
				fmt.Fprintln(out, "\nAlert that would be sent:")
			}
			fmt.Fprintln(out)
			fmt.Fprint(out, report.Alert.Panel.Text())
			return nil
		},
	}
	cmd.Flags().BoolVar(&notify, "notify", false, "send alerts and persist state")
	return cmd
}
