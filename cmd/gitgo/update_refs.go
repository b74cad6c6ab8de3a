package main

import (
	"io"

	"github.com/bhorowitz/gitgo/ginternals"
	"github.com/bhorowitz/gitgo/internal/errutil"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"
)

func newUpdateRefsCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update-refs BRANCH HASH",
		Short: "Point a branch at a commit",
		Args:  cobra.ExactArgs(2),
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return updateRefsCmd(cmd.OutOrStdout(), cfg, args[0], args[1])
	}
	return cmd
}

func updateRefsCmd(out io.Writer, cfg *globalFlags, branch, hash string) (err error) {
	r, err := loadRepository(cfg)
	if err != nil {
		return err
	}
	defer errutil.Close(r, &err)

	oid, err := ginternals.NewOidFromStr(hash)
	if err != nil {
		return xerrors.Errorf("invalid commit id %s: %w", hash, err)
	}
	if _, err := r.GetCommit(oid); err != nil {
		return xerrors.Errorf("%s is not a valid commit: %w", hash, err)
	}

	ref := ginternals.NewReference(ginternals.LocalBranchFullName(branch), oid)
	if err := r.WriteReference(ref); err != nil {
		return xerrors.Errorf("could not update %s: %w", branch, err)
	}
	return nil
}
