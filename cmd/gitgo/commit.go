package main

import (
	"fmt"
	"io"

	"github.com/bhorowitz/gitgo/ginternals"
	"github.com/bhorowitz/gitgo/ginternals/object"
	"github.com/bhorowitz/gitgo/internal/errutil"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"
)

func newCommitCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Snapshot the working directory and record it on the current branch",
		Args:  cobra.NoArgs,
	}

	message := cmd.Flags().StringP("message", "m", "", "Commit message")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return commitCmd(cmd.OutOrStdout(), cfg, *message)
	}
	return cmd
}

// commitCmd is write-tree + commit-tree + update-refs on HEAD's branch.
func commitCmd(out io.Writer, cfg *globalFlags, message string) (err error) {
	if message == "" {
		return xerrors.Errorf("a commit message is required (-m)")
	}

	r, err := loadRepository(cfg)
	if err != nil {
		return err
	}
	defer errutil.Close(r, &err)

	tree, err := r.WriteTree(afero.NewOsFs(), cfg.C.String())
	if err != nil {
		return xerrors.Errorf("could not snapshot the working directory: %w", err)
	}

	var parents []ginternals.Oid
	if head, headErr := r.Reference(ginternals.Head); headErr == nil {
		parents = []ginternals.Oid{head.Target()}
	} else if !xerrors.Is(headErr, ginternals.ErrRefNotFound) {
		return xerrors.Errorf("could not resolve HEAD: %w", headErr)
	}

	branchName, err := r.CurrentBranch()
	if err != nil {
		return xerrors.Errorf("could not determine current branch (detached HEAD is not supported): %w", err)
	}

	author := commitIdentity()
	c := object.NewCommit(tree.ID(), author, &object.CommitOptions{
		Message:   message,
		ParentsID: parents,
	})
	if _, err := r.WriteObject(c.ToObject()); err != nil {
		return xerrors.Errorf("could not write commit: %w", err)
	}

	ref := ginternals.NewReference(ginternals.LocalBranchFullName(branchName), c.ID())
	if err := r.WriteReference(ref); err != nil {
		return xerrors.Errorf("could not update branch %s: %w", branchName, err)
	}

	fmt.Fprintln(out, c.ID().String())
	return nil
}
