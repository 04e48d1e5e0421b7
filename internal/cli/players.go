package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"worldpanel/internal/validate"
)

func (a *app) playersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "players",
		Short: "Manage whitelist, blacklist and operators",
	}

	list := &cobra.Command{
		Use:   "list <world-id>",
		Short: "List a world's players",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.renderer()
			if err != nil {
				return err
			}
			players, err := a.client().Players(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return r.Value(players)
		},
	}
	cmd.AddCommand(list)

	for _, l := range []validate.PlayerList{validate.Whitelist, validate.Blacklist, validate.Operators} {
		l := l
		cmd.AddCommand(&cobra.Command{
			Use:   string(l) + " <world-id> <username>",
			Short: fmt.Sprintf("Toggle a player on the %s", l),
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.client().SetPlayerList(cmd.Context(), args[0], args[1], l); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "%s toggled on %s of %s\n", args[1], l, args[0])
				return nil
			},
		})
	}
	return cmd
}
