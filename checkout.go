package gitgo

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/bhorowitz/gitgo/ginternals"
	"github.com/bhorowitz/gitgo/ginternals/object"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
)

// ErrBareRepository is returned by operations that need a working tree
// on a repository that doesn't have one.
var ErrBareRepository = errors.New("repository has no working tree")

// Checkout materializes branch's tip onto the working tree and rewrites
// HEAD to point at it. Unlike the upstream `git switch`, this only ever
// adds files: it never removes files left over from a previous
// checkout.
func (r *Repository) Checkout(branch string) (filesWritten int, err error) {
	if r.IsBare() {
		return 0, ErrBareRepository
	}

	refName := ginternals.LocalBranchFullName(branch)
	ref, err := r.Reference(refName)
	if err != nil {
		return 0, xerrors.Errorf("could not load branch %s: %w", branch, err)
	}

	commit, err := r.GetCommit(ref.Target())
	if err != nil {
		return 0, xerrors.Errorf("could not load commit %s: %w", ref.Target().String(), err)
	}

	tree, err := r.GetTree(commit.TreeID())
	if err != nil {
		return 0, xerrors.Errorf("could not load tree %s: %w", commit.TreeID().String(), err)
	}

	filesWritten, err = writeTreeToDisk(r.dotGit.Object, r.wt, r.repoRoot, tree)
	if err != nil {
		return filesWritten, xerrors.Errorf("could not checkout %s: %w", branch, err)
	}

	head := ginternals.NewSymbolicReference(ginternals.Head, refName)
	if err := r.dotGit.WriteReference(head); err != nil {
		return filesWritten, xerrors.Errorf("could not update HEAD: %w", err)
	}

	return filesWritten, nil
}

// objectGetter is the subset of backend.Backend needed to resolve tree
// entries during a checkout; kept narrow so writeTreeToDisk is easy to
// exercise from tests without a full backend.
type objectGetter = func(ginternals.Oid) (*object.Object, error)

func writeTreeToDisk(getObject objectGetter, wt afero.Fs, dir string, tree *object.Tree) (int, error) {
	written := 0
	for _, e := range tree.Entries() {
		path := filepath.Join(dir, e.Path)

		switch e.Mode.ObjectType() {
		case object.TypeTree:
			if err := wt.MkdirAll(path, 0o750); err != nil {
				return written, xerrors.Errorf("could not create directory %s: %w", path, err)
			}
			o, err := getObject(e.ID)
			if err != nil {
				return written, xerrors.Errorf("could not load tree %s: %w", path, err)
			}
			sub, err := o.AsTree()
			if err != nil {
				return written, xerrors.Errorf("could not decode tree %s: %w", path, err)
			}
			n, err := writeTreeToDisk(getObject, wt, path, sub)
			written += n
			if err != nil {
				return written, err
			}
		default:
			o, err := getObject(e.ID)
			if err != nil {
				return written, xerrors.Errorf("could not load blob %s: %w", path, err)
			}
			if err := wt.MkdirAll(filepath.Dir(path), 0o750); err != nil {
				return written, xerrors.Errorf("could not create directory %s: %w", filepath.Dir(path), err)
			}
			perm := filePermForMode(e.Mode)
			if err := afero.WriteFile(wt, path, o.Bytes(), perm); err != nil {
				return written, xerrors.Errorf("could not write file %s: %w", path, err)
			}
			written++
		}
	}
	return written, nil
}

func filePermForMode(mode object.TreeObjectMode) os.FileMode {
	if mode == object.ModeExecutable {
		return 0o755
	}
	return 0o644
}
