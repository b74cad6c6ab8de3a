package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	gitgo "github.com/bhorowitz/gitgo"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"
)

func newCloneCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clone URL [PATH]",
		Short: "Clone a remote repository over the smart-HTTP protocol",
		Args:  cobra.RangeArgs(1, 2),
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		dest := ""
		if len(args) == 2 {
			dest = args[1]
		}
		return cloneCmd(cmd.OutOrStdout(), cfg, args[0], dest)
	}
	return cmd
}

func cloneCmd(out io.Writer, cfg *globalFlags, remoteURL, dest string) error {
	if dest == "" {
		dest = destinationFromURL(remoteURL)
		if dest == "" {
			return xerrors.Errorf("could not infer a destination directory from %s; pass one explicitly", remoteURL)
		}
	}

	r, err := gitgo.Clone(context.Background(), remoteURL, dest)
	if err != nil {
		return xerrors.Errorf("could not clone %s: %w", remoteURL, err)
	}
	defer r.Close()

	fmt.Fprintf(out, "Cloned into '%s'\n", dest)
	return nil
}

// destinationFromURL derives the conventional local directory name for
// a clone, the way `git clone` strips the trailing ".git" and host path.
func destinationFromURL(remoteURL string) string {
	u, err := url.Parse(remoteURL)
	if err != nil {
		return ""
	}
	name := path.Base(u.Path)
	return strings.TrimSuffix(name, ".git")
}
