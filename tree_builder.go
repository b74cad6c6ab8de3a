package gitgo

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/bhorowitz/gitgo/backend"
	"github.com/bhorowitz/gitgo/ginternals"
	"github.com/bhorowitz/gitgo/ginternals/object"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
)

// TreeBuilder is used to manually build a tree, entry by entry.
type TreeBuilder struct {
	Backend backend.Backend
	entries map[string]object.TreeEntry
}

// NewTreeBuilder creates a new empty tree builder.
func (r *Repository) NewTreeBuilder() *TreeBuilder {
	return &TreeBuilder{
		Backend: r.dotGit,
	}
}

// NewTreeBuilderFromTree creates a new tree builder pre-populated with
// the entries of an existing tree.
func (r *Repository) NewTreeBuilderFromTree(t *object.Tree) *TreeBuilder {
	entries := map[string]object.TreeEntry{}
	for _, e := range t.Entries() {
		entries[e.Path] = e
	}

	return &TreeBuilder{
		Backend: r.dotGit,
		entries: entries,
	}
}

// Insert adds or replaces an entry in the tree being built.
func (tb *TreeBuilder) Insert(path string, oid ginternals.Oid, mode object.TreeObjectMode) error {
	if !mode.IsValid() {
		return xerrors.Errorf("invalid mode %o", mode)
	}

	o, err := tb.Backend.Object(oid)
	if err != nil {
		return xerrors.Errorf("cannot verify object: %w", err)
	}

	if o.Type() != object.TypeBlob && o.Type() != object.TypeTree {
		return xerrors.Errorf("unexpected object %s: %w", o.Type().String(), object.ErrObjectInvalid)
	}

	if tb.entries == nil {
		tb.entries = map[string]object.TreeEntry{}
	}
	tb.entries[path] = object.TreeEntry{
		Mode: mode,
		Path: path,
		ID:   oid,
	}
	return nil
}

// Remove removes an entry from the tree being built.
func (tb *TreeBuilder) Remove(path string) {
	if tb.entries == nil {
		return
	}
	delete(tb.entries, path)
}

// Write persists a new Tree object made of every entry inserted so far.
func (tb *TreeBuilder) Write() (*object.Tree, error) {
	paths := make([]string, 0, len(tb.entries))
	for p := range tb.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	entries := make([]object.TreeEntry, 0, len(paths))
	for _, p := range paths {
		entries = append(entries, tb.entries[p])
	}

	t := object.NewTree(entries)
	o := t.ToObject()
	if _, err := tb.Backend.WriteObject(o); err != nil {
		return nil, xerrors.Errorf("could not write the object to the odb: %w", err)
	}
	return o.AsTree()
}

// excludedFromWriteTree is the set of entry names skipped at every
// level of the walk performed by WriteTree: the repository's own
// metadata directory (.git and its .gitgo alias) and the node_modules
// build-output directory.
var excludedFromWriteTree = map[string]struct{}{
	".git":         {},
	"node_modules": {},
	".gitgo":       {},
}

// WriteTree walks dir on fs and snapshots its contents into the object
// database, returning the resulting Tree. Directories are recorded as
// nested trees, executable files keep their executable bit, and
// symlinks are stored as blobs holding the link target, matching the
// on-disk object model used everywhere else in this package.
func (r *Repository) WriteTree(fs afero.Fs, dir string) (*object.Tree, error) {
	return writeTreeDir(r.dotGit, fs, dir)
}

func writeTreeDir(b backend.Backend, fs afero.Fs, dir string) (*object.Tree, error) {
	infos, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, xerrors.Errorf("could not list %s: %w", dir, err)
	}

	entries := make([]object.TreeEntry, 0, len(infos))
	for _, info := range infos {
		name := info.Name()
		if _, skip := excludedFromWriteTree[name]; skip {
			continue
		}

		path := filepath.Join(dir, name)

		switch {
		case info.IsDir():
			sub, err := writeTreeDir(b, fs, path)
			if err != nil {
				return nil, err
			}
			entries = append(entries, object.TreeEntry{
				Path: name,
				ID:   sub.ID(),
				Mode: object.ModeDirectory,
			})
		case info.Mode()&os.ModeSymlink != 0:
			target := ""
			if lr, ok := fs.(afero.LinkReader); ok {
				target, err = lr.ReadlinkIfPossible(path)
				if err != nil {
					return nil, xerrors.Errorf("could not read symlink %s: %w", path, err)
				}
			}
			oid, err := writeBlob(b, []byte(target))
			if err != nil {
				return nil, xerrors.Errorf("could not write symlink %s: %w", path, err)
			}
			entries = append(entries, object.TreeEntry{Path: name, ID: oid, Mode: object.ModeSymLink})
		default:
			content, err := afero.ReadFile(fs, path)
			if err != nil {
				return nil, xerrors.Errorf("could not read %s: %w", path, err)
			}
			oid, err := writeBlob(b, content)
			if err != nil {
				return nil, xerrors.Errorf("could not write %s: %w", path, err)
			}
			mode := object.ModeFile
			if info.Mode()&0o111 != 0 {
				mode = object.ModeExecutable
			}
			entries = append(entries, object.TreeEntry{Path: name, ID: oid, Mode: mode})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})

	t := object.NewTree(entries)
	o := t.ToObject()
	if _, err := b.WriteObject(o); err != nil {
		return nil, xerrors.Errorf("could not write tree for %s: %w", dir, err)
	}
	return o.AsTree()
}

func writeBlob(b backend.Backend, content []byte) (ginternals.Oid, error) {
	return b.WriteObject(object.New(object.TypeBlob, content))
}
