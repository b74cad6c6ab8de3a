package main

import (
	"fmt"
	"io"

	"github.com/bhorowitz/gitgo/ginternals"
	"github.com/bhorowitz/gitgo/ginternals/object"
	"github.com/bhorowitz/gitgo/internal/errutil"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"
)

type commitTreeFlags struct {
	parents []string
	message string
}

func newCommitTreeCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commit-tree TREE",
		Short: "Create a commit object from a tree and a message",
		Args:  cobra.ExactArgs(1),
	}

	flags := commitTreeFlags{}
	cmd.Flags().StringArrayVarP(&flags.parents, "parent", "p", nil, "ID of a parent commit object")
	cmd.Flags().StringVarP(&flags.message, "message", "m", "", "Commit message")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return commitTreeCmd(cmd.OutOrStdout(), cfg, flags, args[0])
	}
	return cmd
}

func commitTreeCmd(out io.Writer, cfg *globalFlags, flags commitTreeFlags, treeName string) (err error) {
	if flags.message == "" {
		return xerrors.Errorf("a commit message is required (-m)")
	}

	r, err := loadRepository(cfg)
	if err != nil {
		return err
	}
	defer errutil.Close(r, &err)

	treeID, err := ginternals.NewOidFromStr(treeName)
	if err != nil {
		return xerrors.Errorf("invalid tree id %s: %w", treeName, err)
	}
	if _, err := r.GetTree(treeID); err != nil {
		return xerrors.Errorf("%s is not a valid tree: %w", treeName, err)
	}

	parentIDs := make([]ginternals.Oid, 0, len(flags.parents))
	for _, p := range flags.parents {
		id, err := ginternals.NewOidFromStr(p)
		if err != nil {
			return xerrors.Errorf("invalid parent id %s: %w", p, err)
		}
		if _, err := r.GetCommit(id); err != nil {
			return xerrors.Errorf("%s is not a valid commit: %w", p, err)
		}
		parentIDs = append(parentIDs, id)
	}

	author := commitIdentity()
	c := object.NewCommit(treeID, author, &object.CommitOptions{
		Message:   flags.message,
		ParentsID: parentIDs,
	})

	if _, err := r.WriteObject(c.ToObject()); err != nil {
		return xerrors.Errorf("could not write commit: %w", err)
	}

	fmt.Fprintln(out, c.ID().String())
	return nil
}
