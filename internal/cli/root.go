// Package cli wires the worldpanel command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"worldpanel/internal/api"
	"worldpanel/internal/config"
	"worldpanel/internal/output"
)

type app struct {
	cfgFile   string
	outputFmt string
	cfg       config.Config
	out       io.Writer
	errOut    io.Writer
}

// NewRootCommand builds the command tree writing to the given streams.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "worldpanel",
		Short: "Control panel for hosted game worlds",
		Long: `worldpanel manages game worlds running on an orchestration backend.
It lists and controls worlds, edits server properties, manages players and
datapacks, tails live world logs and charts host metrics. "worldpanel serve"
runs the same features as a local web panel.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			a.cfg = cfg
			return nil
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "config.yaml", "path to configuration file (YAML)")
	root.PersistentFlags().StringVarP(&a.outputFmt, "output", "o", "text", "output format: text, json")

	root.AddCommand(
		a.serveCommand(),
		a.worldsCommand(),
		a.propertiesCommand(),
		a.playersCommand(),
		a.datapacksCommand(),
		a.archiveCommand("backup", "Fetch a fresh backup of a world", (*api.Client).Backup),
		a.archiveCommand("download", "Download a world archive", (*api.Client).Download),
		a.logsCommand(),
		a.metricsCommand(),
		a.versionsCommand(),
	)
	return root
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) client() *api.Client {
	return api.New(a.cfg.APIBaseURL, api.Options{
		Timeout:           a.requestTimeout(),
		RequestsPerSecond: a.cfg.RateLimit.RequestsPerSecond,
		Burst:             a.cfg.RateLimit.Burst,
		ManifestURL:       a.cfg.VersionManifestURL,
	})
}

func (a *app) requestTimeout() time.Duration {
	return time.Duration(a.cfg.RequestTimeoutSec) * time.Second
}

func (a *app) renderer() (output.Renderer, error) {
	return output.New(a.outputFmt, a.out)
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
