package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"worldpanel/internal/logstream"
	"worldpanel/internal/monitor"
	"worldpanel/internal/output"
)

func (a *app) logsCommand() *cobra.Command {
	var noReconnect bool
	cmd := &cobra.Command{
		Use:   "logs <world-id>",
		Short: "Tail a world's live log",
		Long: `Stream a world's server log. The connection is re-established every few
seconds while the world is running, until interrupted.

Examples:
  worldpanel logs w1
  worldpanel logs w1 --output json | jq .message`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			worldID := args[0]
			r, err := a.renderer()
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			opts := logstream.Options{
				Capacity:       a.cfg.LogBufferSize,
				ReconnectDelay: time.Duration(a.cfg.ReconnectDelaySec) * time.Second,
			}
			if noReconnect {
				opts.Active = func() bool { return false }
			} else {
				worlds := monitor.NewWorldMonitor(a.client(), time.Duration(a.cfg.WorldRefreshSec)*time.Second)
				worlds.Start()
				defer worlds.Stop()
				opts.Active = func() bool { return worlds.IsActive(worldID) }
			}

			client, err := logstream.New(a.cfg.AgentURL, worldID, opts)
			if err != nil {
				return err
			}
			client.Start(ctx)
			defer client.Close()
			fmt.Fprintf(a.errOut, "tailing %s\n", client.URL())

			var seq uint64
			status := logstream.StatusDisconnected
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-client.Done():
					if err := a.flushLogs(client, r, &seq); err != nil {
						return err
					}
					if msg := client.LastError(); msg != "" {
						return fmt.Errorf("log stream ended: %s", msg)
					}
					return nil
				case <-client.Updates():
					if s := client.Status(); s != status {
						status = s
						fmt.Fprintf(a.errOut, "log stream %s\n", s)
					}
					if err := a.flushLogs(client, r, &seq); err != nil {
						return err
					}
				}
			}
		},
	}
	cmd.Flags().BoolVar(&noReconnect, "no-reconnect", false, "exit when the connection drops")
	return cmd
}

// flushLogs renders records received since *seq and advances it.
func (a *app) flushLogs(client *logstream.Client, r output.Renderer, seq *uint64) error {
	records, next := client.Since(*seq)
	*seq = next
	for _, rec := range records {
		if err := r.Log(rec); err != nil {
			return err
		}
	}
	return nil
}
