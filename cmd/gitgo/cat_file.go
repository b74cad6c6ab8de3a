package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/bhorowitz/gitgo/ginternals"
	"github.com/bhorowitz/gitgo/ginternals/object"
	"github.com/bhorowitz/gitgo/internal/errutil"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"
)

var errBadFile = errors.New("bad file")

type catFileFlags struct {
	typeOnly    bool
	sizeOnly    bool
	prettyPrint bool
}

func newCatFileCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cat-file [-t|-s|-p] OBJECT",
		Short: "Provide content or type information for a repository object",
		Args:  cobra.ExactArgs(1),
	}

	flags := catFileFlags{}
	cmd.Flags().BoolVarP(&flags.typeOnly, "t", "t", false, "Show the object's type instead of its content")
	cmd.Flags().BoolVarP(&flags.sizeOnly, "s", "s", false, "Show the object's size instead of its content")
	cmd.Flags().BoolVarP(&flags.prettyPrint, "p", "p", false, "Pretty-print the object based on its type")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return catFileCmd(cmd.OutOrStdout(), cfg, flags, args[0])
	}
	return cmd
}

func catFileCmd(out io.Writer, cfg *globalFlags, flags catFileFlags, objectName string) (err error) {
	set := 0
	for _, b := range []bool{flags.typeOnly, flags.sizeOnly, flags.prettyPrint} {
		if b {
			set++
		}
	}
	if set != 1 {
		return errors.New("exactly one of -t, -s, -p must be provided")
	}

	r, err := loadRepository(cfg)
	if err != nil {
		return err
	}
	defer errutil.Close(r, &err)

	oid, err := resolveObjectName(r, objectName)
	if err != nil {
		return err
	}

	o, err := r.GetObject(oid)
	if err != nil {
		return err
	}

	switch {
	case flags.sizeOnly:
		fmt.Fprintln(out, strconv.Itoa(o.Size()))
	case flags.typeOnly:
		fmt.Fprintln(out, o.Type().String())
	case flags.prettyPrint:
		return prettyPrintObject(out, o)
	}
	return nil
}

func resolveObjectName(r interface {
	GetObject(ginternals.Oid) (*object.Object, error)
	Reference(string) (*ginternals.Reference, error)
}, objectName string) (ginternals.Oid, error) {
	oid, err := ginternals.NewOidFromStr(objectName)
	if err == nil {
		return oid, nil
	}

	toTry := []string{
		objectName,
		ginternals.RefFullName(objectName),
		ginternals.LocalBranchFullName(objectName),
		ginternals.LocalTagFullName(objectName),
	}
	for _, refName := range toTry {
		ref, refErr := r.Reference(refName)
		if refErr == nil {
			return ref.Target(), nil
		}
		if !errors.Is(refErr, ginternals.ErrRefNotFound) {
			return ginternals.NullOid, xerrors.Errorf("could not check if ref %s exists: %w", refName, refErr)
		}
	}
	return ginternals.NullOid, xerrors.Errorf("not a valid object name %s", objectName)
}

func prettyPrintObject(out io.Writer, o *object.Object) error {
	switch o.Type() {
	case object.TypeCommit:
		c, err := o.AsCommit()
		if err != nil {
			return xerrors.Errorf("could not decode commit: %w", err)
		}
		fmt.Fprintf(out, "tree %s\n", c.TreeID().String())
		for _, id := range c.ParentIDs() {
			fmt.Fprintf(out, "parent %s\n", id.String())
		}
		fmt.Fprintf(out, "author %s\n", c.Author().String())
		fmt.Fprintf(out, "committer %s\n", c.Committer().String())
		if c.GPGSig() != "" {
			fmt.Fprintf(out, "gpgsig %s\n", c.GPGSig())
		}
		fmt.Fprintln(out)
		fmt.Fprint(out, c.Message())
	case object.TypeTag:
		t, err := o.AsTag()
		if err != nil {
			return xerrors.Errorf("could not decode tag: %w", err)
		}
		fmt.Fprintf(out, "object %s\n", t.Target().String())
		fmt.Fprintf(out, "type %s\n", t.Type().String())
		fmt.Fprintf(out, "tag %s\n", t.Name())
		fmt.Fprintf(out, "tagger %s\n", t.Tagger().String())
		if t.GPGSig() != "" {
			fmt.Fprintf(out, "gpgsig %s\n", t.GPGSig())
		}
		fmt.Fprintln(out)
		fmt.Fprint(out, t.Message())
	case object.TypeTree:
		tree, err := o.AsTree()
		if err != nil {
			return xerrors.Errorf("could not decode tree: %w", err)
		}
		for _, e := range tree.Entries() {
			fmt.Fprintf(out, "%06o %s %s\t%s\n", e.Mode, e.Mode.ObjectType().String(), e.ID.String(), e.Path)
		}
	case object.TypeBlob:
		fmt.Fprint(out, string(o.Bytes()))
	default:
		return xerrors.Errorf("%s: %w", o.Type().String(), errBadFile)
	}
	return nil
}
