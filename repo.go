// Package gitgo implements the plumbing of a git repository: the
// object database, references, the working tree, and the commands
// built on top of them.
package gitgo

import (
	"errors"
	"path/filepath"

	"github.com/bhorowitz/gitgo/backend"
	"github.com/bhorowitz/gitgo/backend/fsbackend"
	"github.com/bhorowitz/gitgo/ginternals"
	"github.com/bhorowitz/gitgo/ginternals/config"
	"github.com/bhorowitz/gitgo/ginternals/object"
	"github.com/bhorowitz/gitgo/internal/gitpath"
	"github.com/bhorowitz/gitgo/internal/pathutil"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
)

// List of errors returned by the Repository struct
var (
	ErrRepositoryNotExist = errors.New("repository does not exist")
	ErrRepositoryExists   = errors.New("repository already exists")
)

// Repository represents a git repository: the .git directory plus,
// unless the repository is bare, the working tree next to it.
type Repository struct {
	dotGitPath string
	dotGit     backend.Backend
	repoRoot   string
	wt         afero.Fs
}

// DefaultInitialBranch is the branch HEAD points at when a repository
// is created without an explicit initial branch name.
const DefaultInitialBranch = "main"

// InitOptions contains all the optional data used to initialize a
// repository
type InitOptions struct {
	// IsBare represents whether a bare repository will be created or not
	IsBare bool
	// InitialBranchName is the branch HEAD will point to. Defaults to
	// DefaultInitialBranch.
	InitialBranchName string
	// GitBackend is the backend used to init the repository and
	// interact with the odb. Defaults to the filesystem.
	GitBackend backend.Backend
	// WorkingTreeBackend is the filesystem used to interact with the
	// working tree. Defaults to the OS filesystem. Unused if IsBare
	// is set.
	WorkingTreeBackend afero.Fs
}

// InitRepository initializes a new git repository by creating the
// .git directory in the given path.
func InitRepository(repoPath string) (*Repository, error) {
	return InitRepositoryWithOptions(repoPath, InitOptions{})
}

// InitRepositoryWithOptions initializes a new git repository by
// creating the .git directory in the given path.
func InitRepositoryWithOptions(repoPath string, opts InitOptions) (*Repository, error) {
	r := newRepository(repoPath, opts.IsBare, opts.GitBackend, opts.WorkingTreeBackend)

	if err := r.dotGit.Init(); err != nil {
		return nil, xerrors.Errorf("could not init backend: %w", err)
	}

	branch := opts.InitialBranchName
	if branch == "" {
		branch = DefaultInitialBranch
	}
	ref := ginternals.NewSymbolicReference(ginternals.Head, ginternals.LocalBranchFullName(branch))
	if err := r.dotGit.WriteReferenceSafe(ref); err != nil {
		if xerrors.Is(err, ginternals.ErrRefExists) {
			return nil, ErrRepositoryExists
		}
		return nil, xerrors.Errorf("could not write HEAD: %w", err)
	}

	return r, nil
}

// OpenOptions contains all the optional data used to open a
// repository
type OpenOptions struct {
	// IsBare represents whether the repository is bare or not
	IsBare bool
	// GitBackend is the backend used to interact with the odb.
	// Defaults to the filesystem.
	GitBackend backend.Backend
	// WorkingTreeBackend is the filesystem used to interact with the
	// working tree. Defaults to the OS filesystem. Unused if IsBare
	// is set.
	WorkingTreeBackend afero.Fs
}

// OpenRepository loads an existing git repository from repoPath.
func OpenRepository(repoPath string) (*Repository, error) {
	return OpenRepositoryWithOptions(repoPath, OpenOptions{})
}

// OpenRepositoryWithOptions loads an existing git repository from
// repoPath.
func OpenRepositoryWithOptions(repoPath string, opts OpenOptions) (*Repository, error) {
	r := newRepository(repoPath, opts.IsBare, opts.GitBackend, opts.WorkingTreeBackend)

	if b, ok := r.dotGit.(*fsbackend.Backend); ok {
		if err := b.Open(); err != nil {
			return nil, xerrors.Errorf("could not open backend: %w", err)
		}
	}

	// Since we can't reliably check for the directory's existence
	// across backends, we check for HEAD instead, since it should
	// always be there on a valid repository.
	if _, err := r.dotGit.Reference(ginternals.Head); err != nil {
		return nil, ErrRepositoryNotExist
	}

	return r, nil
}

// DiscoverRepository walks up from workingDirectory looking for a .git
// directory the way `git -C <dir>` does, then opens the repository it
// finds. This is what the CLI uses to resolve a repository from the
// current directory rather than requiring a literal repository path.
func DiscoverRepository(workingDirectory string) (*Repository, error) {
	cfg, err := config.Discover(afero.NewOsFs(), workingDirectory)
	if err != nil {
		if xerrors.Is(err, pathutil.ErrNoRepo) {
			return nil, ErrRepositoryNotExist
		}
		return nil, xerrors.Errorf("could not discover repository: %w", err)
	}
	return OpenRepository(filepath.Dir(cfg.GitDirPath))
}

func newRepository(repoPath string, isBare bool, gitBackend backend.Backend, wtBackend afero.Fs) *Repository {
	dotGitPath := repoPath
	if !isBare {
		dotGitPath = filepath.Join(repoPath, gitpath.DotGitPath)
	}
	r := &Repository{
		repoRoot:   repoPath,
		dotGitPath: dotGitPath,
		dotGit:     gitBackend,
	}
	if r.dotGit == nil {
		r.dotGit = fsbackend.New(dotGitPath)
	}
	if !isBare {
		r.wt = wtBackend
		if r.wt == nil {
			r.wt = afero.NewOsFs()
		}
	}
	return r
}

// IsBare returns whether the repository has no working tree
func (r *Repository) IsBare() bool {
	return r.wt == nil
}

// Close releases the resources held by the repository's backend
func (r *Repository) Close() error {
	return r.dotGit.Close()
}

// Backend returns the backend used to read and write this repository's
// objects and references.
func (r *Repository) Backend() backend.Backend {
	return r.dotGit
}

// GetObject returns the object matching the given Oid
func (r *Repository) GetObject(oid ginternals.Oid) (*object.Object, error) {
	return r.dotGit.Object(oid)
}

// WriteObject writes an object to the odb and returns its Oid
func (r *Repository) WriteObject(o *object.Object) (ginternals.Oid, error) {
	return r.dotGit.WriteObject(o)
}

// GetCommit returns the commit matching the given Oid
func (r *Repository) GetCommit(oid ginternals.Oid) (*object.Commit, error) {
	o, err := r.GetObject(oid)
	if err != nil {
		return nil, xerrors.Errorf("could not get object %s: %w", oid.String(), err)
	}
	return o.AsCommit()
}

// GetTree returns the tree matching the given Oid
func (r *Repository) GetTree(oid ginternals.Oid) (*object.Tree, error) {
	o, err := r.GetObject(oid)
	if err != nil {
		return nil, xerrors.Errorf("could not get object %s: %w", oid.String(), err)
	}
	return o.AsTree()
}

// GetBlob returns the blob matching the given Oid
func (r *Repository) GetBlob(oid ginternals.Oid) (*object.Blob, error) {
	o, err := r.GetObject(oid)
	if err != nil {
		return nil, xerrors.Errorf("could not get object %s: %w", oid.String(), err)
	}
	return o.AsBlob(), nil
}

// Reference returns the reference matching the given name
func (r *Repository) Reference(name string) (*ginternals.Reference, error) {
	return r.dotGit.Reference(name)
}

// WriteReference persists the given reference, overwriting any
// existing reference of the same name
func (r *Repository) WriteReference(ref *ginternals.Reference) error {
	return r.dotGit.WriteReference(ref)
}

// WriteReferenceSafe persists the given reference, failing with
// ginternals.ErrRefExists if a reference of the same name already
// exists.
func (r *Repository) WriteReferenceSafe(ref *ginternals.Reference) error {
	return r.dotGit.WriteReferenceSafe(ref)
}

// DeleteReference removes a reference from the repository.
func (r *Repository) DeleteReference(name string) error {
	return r.dotGit.DeleteReference(name)
}

// WalkReferences runs f on every reference stored in the repository.
func (r *Repository) WalkReferences(f backend.RefWalkFunc) error {
	return r.dotGit.WalkReferences(f)
}

// Head returns the repository's HEAD reference, resolved to the Oid
// it ultimately points at
func (r *Repository) Head() (*ginternals.Reference, error) {
	return r.dotGit.Reference(ginternals.Head)
}

// CurrentBranch returns the short name of the branch HEAD points at,
// even if that branch has no commits yet. An error is returned if HEAD
// is detached (points directly at an Oid rather than a branch).
func (r *Repository) CurrentBranch() (string, error) {
	target, err := r.dotGit.SymbolicTarget(ginternals.Head)
	if err != nil {
		return "", xerrors.Errorf("could not read HEAD: %w", err)
	}
	return ginternals.LocalBranchShortName(target), nil
}
