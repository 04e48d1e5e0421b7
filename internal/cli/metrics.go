package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"worldpanel/internal/config"
	"worldpanel/internal/metrics"
)

func (a *app) metricsCommand() *cobra.Command {
	var (
		rangeKey string
		category string
		subType  string
		watch    bool
	)
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show host CPU, disk or network metrics",
		Long: `Fetch host telemetry from the cloud metrics API for one time range and
category. With --watch the window keeps sliding until interrupted.

Examples:
  worldpanel metrics --range 1h
  worldpanel metrics --category disk --type bandwidth --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !a.cfg.Metrics.Enabled() {
				return fmt.Errorf("metrics api not configured: set metrics.api_token (or %s) and metrics.server_id", config.TokenEnv)
			}
			r, err := a.renderer()
			if err != nil {
				return err
			}

			if rangeKey == "" {
				rangeKey = a.cfg.Metrics.DefaultRange
			}
			sel := metrics.DefaultSelection()
			sel.Range = rangeKey
			sel.Category = metrics.Category(category)
			if subType != "" {
				switch sel.Category {
				case metrics.CategoryDisk:
					sel.Disk = metrics.SubMetric(subType)
				case metrics.CategoryNetwork:
					sel.Network = metrics.SubMetric(subType)
				default:
					return fmt.Errorf("--type applies to disk and network only")
				}
			}

			source := metrics.NewCloudSource(a.cfg.Metrics.MetricsURL(), a.cfg.Metrics.APIToken, a.requestTimeout())
			agg, err := metrics.NewAggregator(source, sel, metrics.Options{})
			if err != nil {
				return err
			}

			if !watch {
				if err := agg.Poll(cmd.Context()); err != nil {
					return err
				}
				return r.Metrics(agg.Snapshot())
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			go agg.Run(ctx)
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-agg.Updates():
					if err := r.Metrics(agg.Snapshot()); err != nil {
						return err
					}
				}
			}
		},
	}
	cmd.Flags().StringVarP(&rangeKey, "range", "r", "", "time range: 5m, 30m, 1h, 4h, 1d, 10d, 30d")
	cmd.Flags().StringVar(&category, "category", string(metrics.CategoryCPU), "cpu, disk or network")
	cmd.Flags().StringVar(&subType, "type", "", "iops or bandwidth for disk; pps or bandwidth for network")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep polling and print each update")
	return cmd
}
