package main

import (
	"fmt"
	"io"

	"github.com/bhorowitz/gitgo/internal/errutil"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"
)

func newCheckoutCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkout BRANCH",
		Short: "Materialize a branch onto the working tree and move HEAD to it",
		Args:  cobra.ExactArgs(1),
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return checkoutCmd(cmd.OutOrStdout(), cfg, args[0])
	}
	return cmd
}

func checkoutCmd(out io.Writer, cfg *globalFlags, branch string) (err error) {
	r, err := loadRepository(cfg)
	if err != nil {
		return err
	}
	defer errutil.Close(r, &err)

	n, err := r.Checkout(branch)
	if err != nil {
		return xerrors.Errorf("could not checkout %s: %w", branch, err)
	}

	fmt.Fprintf(out, "Switched to branch '%s' (%d files written)\n", branch, n)
	return nil
}
