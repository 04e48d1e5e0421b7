package cli

import (
	"github.com/spf13/cobra"
)

func (a *app) versionsCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "List game release versions available for new worlds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := a.renderer()
			if err != nil {
				return err
			}
			versions, err := a.client().ReleaseVersions(cmd.Context())
			if err != nil {
				return err
			}
			if limit > 0 && len(versions) > limit {
				versions = versions[:limit]
			}
			ids := make([]string, len(versions))
			for i, v := range versions {
				ids[i] = v.ID
			}
			return r.Value(ids)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "show at most n versions (0 for all)")
	return cmd
}
