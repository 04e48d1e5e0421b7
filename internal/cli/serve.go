package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"worldpanel/internal/metrics"
	"worldpanel/internal/monitor"
	"worldpanel/internal/server"
)

func (a *app) serveCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web panel backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			if addr != "" {
				cfg.ListenAddr = addr
			}
			client := a.client()

			worlds := monitor.NewWorldMonitor(client, time.Duration(cfg.WorldRefreshSec)*time.Second)
			worlds.Start()
			defer worlds.Stop()

			probe, err := monitor.NewAgentProbe(cfg.AgentURL, time.Duration(cfg.AgentProbeSec)*time.Second, 0)
			if err != nil {
				return err
			}
			probe.Start()
			defer probe.Stop()

			opts := server.Options{
				Addr:           cfg.ListenAddr,
				AgentURL:       cfg.AgentURL,
				LogBufferSize:  cfg.LogBufferSize,
				ReconnectDelay: time.Duration(cfg.ReconnectDelaySec) * time.Second,
				RequestsPerSec: cfg.RateLimit.RequestsPerSecond,
				Burst:          cfg.RateLimit.Burst,
			}
			if sel, err := defaultSelection(cfg.Metrics.DefaultRange); err == nil {
				opts.DefaultSelection = sel
			} else {
				log.Printf("metrics default range: %v", err)
			}
			if cfg.Metrics.Enabled() {
				opts.MetricsSource = metrics.NewCloudSource(cfg.Metrics.MetricsURL(), cfg.Metrics.APIToken, a.requestTimeout())
			} else {
				log.Printf("metrics api token or server id missing; telemetry feed disabled")
			}

			srv := server.New(opts, client, worlds, probe)

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					log.Printf("server shutdown: %v", err)
				}
			}()

			log.Printf("worldpanel listening on %s (backend %s, agent %s)", cfg.ListenAddr, cfg.APIBaseURL, cfg.AgentURL)
			if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "address for the web server (overrides listen_addr)")
	return cmd
}

func defaultSelection(rangeKey string) (metrics.Selection, error) {
	sel := metrics.DefaultSelection()
	if rangeKey != "" {
		sel.Range = rangeKey
	}
	return sel, sel.Validate()
}
