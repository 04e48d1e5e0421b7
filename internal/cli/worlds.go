package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"worldpanel/internal/api"
	"worldpanel/internal/models"
	"worldpanel/internal/validate"
)

func (a *app) worldsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "worlds",
		Aliases: []string{"world"},
		Short:   "List, inspect and control worlds",
	}
	cmd.AddCommand(
		a.worldsListCommand(),
		a.worldsShowCommand(),
		a.worldsCreateCommand(),
		a.worldsControlCommand(api.ActionStart, "Start a world"),
		a.worldsControlCommand(api.ActionStop, "Stop a world"),
		a.worldsControlCommand(api.ActionRestart, "Restart a world"),
		a.worldsPortCommand(),
		a.worldsRAMCommand(),
	)
	return cmd
}

func (a *app) worldsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all worlds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := a.renderer()
			if err != nil {
				return err
			}
			worlds, err := a.client().ListWorlds(cmd.Context())
			if err != nil {
				return err
			}
			return r.Worlds(worlds)
		},
	}
}

func (a *app) worldsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <world-id>",
		Short: "Show a world's settings, players and properties",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.renderer()
			if err != nil {
				return err
			}
			world, err := a.client().GetWorld(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return r.Value(world)
		},
	}
}

func (a *app) worldsCreateCommand() *cobra.Command {
	var (
		name    string
		version string
		port    int
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a world",
		Long: `Create a world on the backend. --version defaults to the newest release
listed in the game's version manifest.

Examples:
  worldpanel worlds create --name survival --port 25565
  worldpanel worlds create --name legacy --version 1.20.4 --port 25566`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := a.client()
			if version == "" || version == "latest" {
				versions, err := client.ReleaseVersions(cmd.Context())
				if err != nil {
					return fmt.Errorf("resolve latest version: %w", err)
				}
				if len(versions) == 0 {
					return fmt.Errorf("resolve latest version: manifest lists no releases")
				}
				version = versions[0].ID
			}
			cfg := models.WorldConfig{WorldName: name, ServerVersion: version, Port: port}
			if err := client.CreateWorld(cmd.Context(), cfg); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "created world %s (%s) on port %d\n", name, version, port)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "world name")
	cmd.Flags().StringVar(&version, "version", "latest", "server version")
	cmd.Flags().IntVar(&port, "port", 0, "server port")
	return cmd
}

func (a *app) worldsControlCommand(action api.Action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(action) + " <world-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client().Control(cmd.Context(), args[0], action); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s requested for %s\n", action, args[0])
			return nil
		},
	}
}

func (a *app) worldsPortCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "port <world-id> <port>",
		Short: "Change a world's port",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := validate.ParsePort(args[1])
			if err != nil {
				return err
			}
			if err := a.client().SetPort(cmd.Context(), args[0], port); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "port of %s set to %d\n", args[0], port)
			return nil
		},
	}
}

func (a *app) worldsRAMCommand() *cobra.Command {
	var minGB, maxGB float64
	cmd := &cobra.Command{
		Use:   "ram <world-id>",
		Short: "Change a world's heap allocation in GB",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ram, err := validate.RAM(minGB, maxGB)
			if err != nil {
				return err
			}
			if err := a.client().SetRAM(cmd.Context(), args[0], ram); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "ram of %s set to %s-%s GB\n", args[0],
				strconv.FormatFloat(validate.MBToGB(ram.Min), 'f', -1, 64),
				strconv.FormatFloat(validate.MBToGB(ram.Max), 'f', -1, 64))
			return nil
		},
	}
	cmd.Flags().Float64Var(&minGB, "min", 1, "minimum heap in GB")
	cmd.Flags().Float64Var(&maxGB, "max", 2, "maximum heap in GB")
	return cmd
}
