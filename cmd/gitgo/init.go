package main

import (
	"io"
	"os"
	"path/filepath"

	gitgo "github.com/bhorowitz/gitgo"
	"github.com/spf13/cobra"
)

type initCmdFlags struct {
	initialBranch string
	quiet         bool
}

func newInitCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Create an empty git repository",
		Args:  cobra.MaximumNArgs(1),
	}

	flags := initCmdFlags{}
	cmd.Flags().StringVarP(&flags.initialBranch, "initial-branch", "b", "", "Use the specified name for the initial branch. Defaults to "+gitgo.DefaultInitialBranch+".")
	cmd.Flags().BoolVarP(&flags.quiet, "quiet", "q", false, "Only print error messages.")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		directory := cfg.C.String()
		if len(args) > 0 {
			directory = args[0]
		}
		return initCmd(cmd.OutOrStdout(), flags, directory)
	}

	return cmd
}

func initCmd(out io.Writer, flags initCmdFlags, directory string) error {
	abs, err := filepath.Abs(directory)
	if err != nil {
		return err
	}

	_, statErr := os.Stat(filepath.Join(abs, ".git"))
	reinit := statErr == nil

	r, err := gitgo.InitRepositoryWithOptions(abs, gitgo.InitOptions{
		InitialBranchName: flags.initialBranch,
	})
	if err != nil {
		return err
	}
	defer r.Close()

	if reinit {
		fprintln(flags.quiet, out, "Reinitialized existing Git repository in", filepath.Join(abs, ".git"))
	} else {
		fprintln(flags.quiet, out, "Initialized empty Git repository in", filepath.Join(abs, ".git"))
	}
	return nil
}
