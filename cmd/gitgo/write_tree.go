package main

import (
	"fmt"
	"io"

	"github.com/bhorowitz/gitgo/internal/errutil"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"
)

func newWriteTreeCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "write-tree",
		Short: "Snapshot the working directory into a tree object",
		Args:  cobra.NoArgs,
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return writeTreeCmd(cmd.OutOrStdout(), cfg)
	}
	return cmd
}

func writeTreeCmd(out io.Writer, cfg *globalFlags) (err error) {
	r, err := loadRepository(cfg)
	if err != nil {
		return err
	}
	defer errutil.Close(r, &err)

	tree, err := r.WriteTree(afero.NewOsFs(), cfg.C.String())
	if err != nil {
		return xerrors.Errorf("could not write tree: %w", err)
	}

	fmt.Fprintln(out, tree.ID().String())
	return nil
}
