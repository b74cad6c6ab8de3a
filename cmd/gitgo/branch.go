package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/bhorowitz/gitgo/ginternals"
	"github.com/bhorowitz/gitgo/internal/errutil"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"
)

type branchFlags struct {
	list   bool
	all    bool
	delete string
}

func newBranchCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "branch [name]",
		Short: "List, create, or delete branches",
		Args:  cobra.MaximumNArgs(1),
	}

	flags := branchFlags{}
	cmd.Flags().BoolVar(&flags.list, "list", false, "List local branches")
	cmd.Flags().BoolVarP(&flags.all, "all", "a", false, "List every reference, not just local branches")
	cmd.Flags().StringVarP(&flags.delete, "delete", "d", "", "Delete the named branch")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) > 0 {
			name = args[0]
		}
		return branchCmd(cmd.OutOrStdout(), cfg, flags, name)
	}
	return cmd
}

func branchCmd(out io.Writer, cfg *globalFlags, flags branchFlags, name string) (err error) {
	r, err := loadRepository(cfg)
	if err != nil {
		return err
	}
	defer errutil.Close(r, &err)

	switch {
	case flags.delete != "":
		current, err := r.CurrentBranch()
		if err == nil && current == flags.delete {
			return xerrors.Errorf("could not delete branch %s: %w", flags.delete, ginternals.ErrRefInUse)
		}
		if err := r.DeleteReference(ginternals.LocalBranchFullName(flags.delete)); err != nil {
			return xerrors.Errorf("could not delete branch %s: %w", flags.delete, err)
		}
		return nil

	case flags.list || flags.all || name == "":
		return r.WalkReferences(func(ref *ginternals.Reference) error {
			switch {
			case strings.HasPrefix(ref.Name(), "refs/heads/"):
				fmt.Fprintln(out, ginternals.LocalBranchShortName(ref.Name()))
			case flags.all:
				fmt.Fprintln(out, ref.Name())
			}
			return nil
		})

	default:
		head, err := r.Head()
		if err != nil {
			return xerrors.Errorf("could not resolve HEAD: %w", err)
		}
		ref := ginternals.NewReference(ginternals.LocalBranchFullName(name), head.Target())
		if err := r.WriteReferenceSafe(ref); err != nil {
			return xerrors.Errorf("could not create branch %s: %w", name, err)
		}
		return nil
	}
}
