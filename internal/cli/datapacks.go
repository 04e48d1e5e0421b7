package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func (a *app) datapacksCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "datapacks",
		Aliases: []string{"datapack"},
		Short:   "List, upload and delete datapacks",
	}

	list := &cobra.Command{
		Use:   "list <world-id>",
		Short: "List a world's datapacks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.renderer()
			if err != nil {
				return err
			}
			packs, err := a.client().Datapacks(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return r.Value(packs)
		},
	}

	upload := &cobra.Command{
		Use:   "upload <world-id> <file.zip>",
		Short: "Upload a datapack archive",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()
			info, err := f.Stat()
			if err != nil {
				return err
			}
			name := filepath.Base(args[1])
			if err := a.client().UploadDatapack(cmd.Context(), args[0], name, f, info.Size()); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "uploaded %s to %s\n", name, args[0])
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <world-id> <name>",
		Short: "Delete a datapack",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client().DeleteDatapack(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "deleted %s from %s\n", args[1], args[0])
			return nil
		},
	}

	cmd.AddCommand(list, upload, del)
	return cmd
}
