package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func (a *app) propertiesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "properties",
		Aliases: []string{"props"},
		Short:   "Read or edit server.properties",
	}

	get := &cobra.Command{
		Use:   "get <world-id>",
		Short: "Print a world's properties",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.renderer()
			if err != nil {
				return err
			}
			props, err := a.client().Properties(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return r.Value(props)
		},
	}

	set := &cobra.Command{
		Use:   "set <world-id> key=value...",
		Short: "Change one or more properties",
		Long: `Change properties. Known keys are checked against their type before
anything is sent; unknown keys are stored as custom properties.

Examples:
  worldpanel properties set w1 difficulty=hard pvp=false max-players=30`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			edits, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}
			r, err := a.renderer()
			if err != nil {
				return err
			}
			props, err := a.client().UpdateProperties(cmd.Context(), args[0], edits)
			if err != nil {
				return err
			}
			return r.Value(props)
		},
	}

	cmd.AddCommand(get, set)
	return cmd
}

func parseAssignments(args []string) (map[string]string, error) {
	out := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		out[key] = value
	}
	return out, nil
}
