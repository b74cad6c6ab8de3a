package fsbackend

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bhorowitz/gitgo/backend"
	"github.com/bhorowitz/gitgo/ginternals"
	"github.com/bhorowitz/gitgo/internal/gitpath"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
)

// Reference returns a stored reference from its name
// ErrRefNotFound is returned if the reference doesn't exists
func (b *Backend) Reference(name string) (*ginternals.Reference, error) {
	var packedRef map[string]string

	finder := func(name string) ([]byte, error) {
		data, err := afero.ReadFile(b.fs, b.systemPath(name))
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, xerrors.Errorf("could not read reference content: %w", err)
			}
			// if the reference can't be found on disk, it might be
			// in the packed-ref file
			if packedRef == nil {
				packedRef, err = b.parsePackedRefs()
				if err != nil {
					return nil, xerrors.Errorf("couldn't load packed-refs: %w", err)
				}
			}
			sha, ok := packedRef[name]
			if !ok {
				return nil, xerrors.Errorf(`ref "%s": %w`, name, ginternals.ErrRefNotFound)
			}
			return []byte(sha), nil
		}
		return data, nil
	}
	return ginternals.ResolveReference(name, finder)
}

// SymbolicTarget returns the ref name a symbolic reference points at,
// without following it.
func (b *Backend) SymbolicTarget(name string) (string, error) {
	data, err := afero.ReadFile(b.fs, b.systemPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", xerrors.Errorf(`ref "%s": %w`, name, ginternals.ErrRefNotFound)
		}
		return "", xerrors.Errorf("could not read reference content: %w", err)
	}
	return ginternals.PeekSymbolicTarget(name, func(string) ([]byte, error) {
		return data, nil
	})
}

// systemPath returns a path from a ref name
// Ex.: On windows refs/heads/master would return refs\heads\master
func (b *Backend) systemPath(name string) string {
	switch os.PathSeparator {
	case '/':
		return filepath.Join(b.root, name)
	default:
		name = filepath.FromSlash(name)
		return filepath.Join(b.root, name)
	}
}

// parsePackedRefs parsed the packed-refs file and returns a map
// refName => Oid
// https://git-scm.com/docs/git-pack-refs
func (b *Backend) parsePackedRefs() (refs map[string]string, err error) {
	refs = map[string]string{}
	f, err := b.fs.Open(filepath.Join(b.root, gitpath.PackedRefsPath))
	if err != nil {
		// if the file doesn't exist we just return an empty map
		if os.IsNotExist(err) {
			return refs, nil
		}
		return nil, xerrors.Errorf("could not open %s: %w", gitpath.PackedRefsPath, err)
	}
	defer func() {
		closeErr := f.Close()
		if err == nil {
			err = closeErr
		}
	}()

	sc := bufio.NewScanner(f)
	for i := 1; sc.Scan(); i++ {
		line := sc.Text()
		// we skip empty lines, comments, and annotated tag commit
		if line == "" || line[0] == '#' || line[0] == '^' {
			continue
		}
		// We expected data to have the format:
		// "oid ref-name"
		parts := strings.Split(line, " ")
		if len(parts) != 2 {
			return nil, xerrors.Errorf("unexpected data line %d: %w", i, ginternals.ErrPackedRefInvalid)
		}
		refs[parts[1]] = parts[0]
	}

	if sc.Err() != nil {
		return nil, xerrors.Errorf("could not parse %s: %w", gitpath.PackedRefsPath, err)
	}

	return refs, nil
}

// WriteReference writes the given reference on disk. If the
// reference already exists it will be overwritten
func (b *Backend) WriteReference(ref *ginternals.Reference) error {
	if !ginternals.IsRefNameValid(ref.Name()) {
		return ginternals.ErrRefNameInvalid
	}

	target := ""
	switch ref.Type() {
	case ginternals.SymbolicReference:
		target = fmt.Sprintf("ref: %s\n", ref.SymbolicTarget())
	case ginternals.OidReference:
		target = fmt.Sprintf("%s\n", ref.Target().String())
	default:
		return xerrors.Errorf("reference type %d: %w", ref.Type(), ginternals.ErrUnknownRefType)
	}
	p := b.systemPath(ref.Name())
	if err := b.fs.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return xerrors.Errorf("could not create directory for reference: %w", err)
	}
	if err := afero.WriteFile(b.fs, p, []byte(target), 0o644); err != nil {
		return xerrors.Errorf("could not persist reference to disk: %w", err)
	}
	return nil
}

// WalkReferences runs f on every reference stored on disk, loose or
// packed. Loose refs are walked first, then packed ones that aren't
// shadowed by a loose ref of the same name.
// Returning backend.WalkStop from f stops the walk early without
// returning an error.
func (b *Backend) WalkReferences(f backend.RefWalkFunc) (err error) {
	seen := map[string]struct{}{}

	refsRoot := filepath.Join(b.root, gitpath.RefsPath)
	walkErr := afero.Walk(b.fs, refsRoot, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			// the refs/ directory might not exist on a brand new repo
			return nil
		}
		if info.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(b.root, path)
		if relErr != nil {
			return xerrors.Errorf("could not compute reference name for %s: %w", path, relErr)
		}
		name := filepath.ToSlash(rel)
		seen[name] = struct{}{}

		ref, refErr := b.Reference(name)
		if refErr != nil {
			return xerrors.Errorf("could not load reference %s: %w", name, refErr)
		}
		if cbErr := f(ref); cbErr != nil {
			return cbErr
		}
		return nil
	})
	if walkErr != nil {
		if xerrors.Is(walkErr, backend.WalkStop) {
			return nil
		}
		return walkErr
	}

	packed, err := b.parsePackedRefs()
	if err != nil {
		return xerrors.Errorf("couldn't load packed-refs: %w", err)
	}
	for name := range packed {
		if _, ok := seen[name]; ok {
			continue
		}
		ref, refErr := b.Reference(name)
		if refErr != nil {
			return xerrors.Errorf("could not load packed reference %s: %w", name, refErr)
		}
		if cbErr := f(ref); cbErr != nil {
			if xerrors.Is(cbErr, backend.WalkStop) {
				return nil
			}
			return cbErr
		}
	}
	return nil
}

// WriteReferenceSafe writes the given reference in the db
// ErrRefExists is returned if the reference already exists
func (b *Backend) WriteReferenceSafe(ref *ginternals.Reference) error {
	if !ginternals.IsRefNameValid(ref.Name()) {
		return ginternals.ErrRefNameInvalid
	}

	// First we check if the reference is on disk
	p := b.systemPath(ref.Name())
	_, err := b.fs.Stat(p)
	if !os.IsNotExist(err) {
		if err != nil {
			return xerrors.Errorf("could not check if reference exists on disk: %w", err)
		}
		return ginternals.ErrRefExists
	}

	// Now we check if the reference is on the packed-refs file
	refs, err := b.parsePackedRefs()
	if err != nil {
		return xerrors.Errorf("could not check %s: %w", gitpath.PackedRefsPath, err)
	}
	if _, ok := refs[ref.Name()]; ok {
		return ginternals.ErrRefExists
	}

	return b.WriteReference(ref)
}

// DeleteReference removes a loose reference from disk.
// ErrRefNotFound is returned if the reference doesn't exist.
func (b *Backend) DeleteReference(name string) error {
	p := b.systemPath(name)
	if _, err := b.fs.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return ginternals.ErrRefNotFound
		}
		return xerrors.Errorf("could not check if reference exists: %w", err)
	}
	if err := b.fs.Remove(p); err != nil {
		return xerrors.Errorf("could not delete reference %s: %w", name, err)
	}
	return nil
}
