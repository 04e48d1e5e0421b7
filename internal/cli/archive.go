package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"worldpanel/internal/api"
)

type archiveFetch func(c *api.Client, ctx context.Context, id string, w io.Writer) (int64, error)

func (a *app) archiveCommand(name, short string, fetch archiveFetch) *cobra.Command {
	var dest string
	cmd := &cobra.Command{
		Use:   name + " <world-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			path := dest
			if path == "" {
				path = fmt.Sprintf("%s-%s.zip", id, name)
			}
			if path == "-" {
				_, err := fetch(a.client(), cmd.Context(), id, a.out)
				return err
			}

			f, err := os.CreateTemp(filepath.Dir(path), "."+name+"-*.part")
			if err != nil {
				return err
			}
			n, err := fetch(a.client(), cmd.Context(), id, f)
			closeErr := f.Close()
			if err == nil {
				err = closeErr
			}
			if err != nil {
				_ = os.Remove(f.Name())
				return err
			}
			if err := os.Rename(f.Name(), path); err != nil {
				_ = os.Remove(f.Name())
				return err
			}
			fmt.Fprintf(a.errOut, "wrote %d bytes to %s\n", n, path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dest, "file", "f", "", `destination file ("-" for stdout)`)
	return cmd
}
