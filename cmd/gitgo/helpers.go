package main

import (
	"fmt"
	"io"

	gitgo "github.com/bhorowitz/gitgo"
)

func loadRepository(cfg *globalFlags) (*gitgo.Repository, error) {
	r, err := gitgo.DiscoverRepository(cfg.C.String())
	if err != nil {
		return nil, fmt.Errorf("could not open repository: %w", err)
	}
	return r, nil
}

func fprintln(quiet bool, out io.Writer, msg ...interface{}) {
	if !quiet {
		fmt.Fprintln(out, msg...)
	}
}

func fprintf(quiet bool, out io.Writer, format string, a ...interface{}) {
	if !quiet {
		fmt.Fprintf(out, format, a...)
	}
}
