package main

import (
	"fmt"
	"io"

	"github.com/bhorowitz/gitgo/internal/errutil"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"
)

type lsTreeFlags struct {
	nameOnly bool
	long     bool
}

func newLsTreeCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls-tree TREE-ISH",
		Short: "List the entries of a tree object",
		Args:  cobra.ExactArgs(1),
	}

	flags := lsTreeFlags{}
	cmd.Flags().BoolVar(&flags.nameOnly, "name-only", false, "List only the name of each entry")
	cmd.Flags().BoolVarP(&flags.long, "long", "l", false, "Include the object size of each entry")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return lsTreeCmd(cmd.OutOrStdout(), cfg, flags, args[0])
	}
	return cmd
}

func lsTreeCmd(out io.Writer, cfg *globalFlags, flags lsTreeFlags, objectName string) (err error) {
	r, err := loadRepository(cfg)
	if err != nil {
		return err
	}
	defer errutil.Close(r, &err)

	oid, err := resolveObjectName(r, objectName)
	if err != nil {
		return err
	}

	tree, err := r.GetTree(oid)
	if err != nil {
		return xerrors.Errorf("could not load tree %s: %w", objectName, err)
	}

	for _, e := range tree.Entries() {
		if flags.nameOnly {
			fmt.Fprintln(out, e.Path)
			continue
		}
		if flags.long {
			o, err := r.GetObject(e.ID)
			if err != nil {
				return xerrors.Errorf("could not load entry %s: %w", e.Path, err)
			}
			fmt.Fprintf(out, "%06o %s %s %7d\t%s\n", e.Mode, e.Mode.ObjectType().String(), e.ID.String(), o.Size(), e.Path)
			continue
		}
		fmt.Fprintf(out, "%06o %s %s\t%s\n", e.Mode, e.Mode.ObjectType().String(), e.ID.String(), e.Path)
	}
	return nil
}
