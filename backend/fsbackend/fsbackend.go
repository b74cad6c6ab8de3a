// Package fsbackend contains an implementation of the backend.Backend
// interface for the filesystem
package fsbackend

import (
	"path/filepath"
	"sync"

	"github.com/bhorowitz/gitgo/backend"
	"github.com/bhorowitz/gitgo/ginternals"
	"github.com/bhorowitz/gitgo/ginternals/packfile"
	"github.com/bhorowitz/gitgo/internal/cache"
	"github.com/bhorowitz/gitgo/internal/gitpath"
	"github.com/bhorowitz/gitgo/internal/syncutil"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
)

// we make sure the struct implements the interface
var _ backend.Backend = (*Backend)(nil)

// defaultObjectCacheSize is the number of decoded objects kept around in
// the read-through LRU cache.
const defaultObjectCacheSize = 256

// defaultMutexShards is the number of mutex shards backing the
// per-object NamedMutex.
const defaultMutexShards = 64

// Backend is a Backend implementation that uses the filesystem to store
// data under a .git-like directory
type Backend struct {
	root string
	fs   afero.Fs

	objectMu *syncutil.NamedMutex
	cache    *cache.LRU

	looseObjects sync.Map // ginternals.Oid -> struct{}
	packfiles    map[ginternals.Oid]*packfile.Pack
}

// Option configures a Backend returned by New
type Option func(*Backend)

// WithFs overrides the filesystem implementation used to access the
// repository. Defaults to the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(b *Backend) {
		b.fs = fs
	}
}

// New returns a new Backend rooted at dotGitPath (the directory that
// would be named ".git" in a non-bare repository)
func New(dotGitPath string, opts ...Option) *Backend {
	objectCache, err := cache.NewLRU(defaultObjectCacheSize)
	if err != nil {
		// defaultObjectCacheSize is a package constant, never invalid
		panic(err)
	}
	b := &Backend{
		root:      dotGitPath,
		fs:        afero.NewOsFs(),
		objectMu:  syncutil.NewNamedMutex(defaultMutexShards),
		cache:     objectCache,
		packfiles: map[ginternals.Oid]*packfile.Pack{},
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Close frees the resources held by the backend
func (b *Backend) Close() error {
	return nil
}

// Init initializes a repository's on-disk layout: the object/ref
// directories, the description file, a packed-refs file holding only
// its header (an existing one is left untouched), and the default config.
func (b *Backend) Init() error {
	dirs := []string{
		gitpath.ObjectsPath,
		gitpath.RefsTagsPath,
		gitpath.RefsHeadsPath,
		gitpath.ObjectsInfoPath,
		gitpath.ObjectsPackPath,
	}
	for _, d := range dirs {
		if err := b.fs.MkdirAll(filepath.Join(b.root, d), 0o750); err != nil {
			return xerrors.Errorf("could not create directory %s: %w", d, err)
		}
	}

	description := []byte("Unnamed repository; edit this file 'description' to name the repository.\n")
	if err := afero.WriteFile(b.fs, filepath.Join(b.root, gitpath.DescriptionPath), description, 0o644); err != nil {
		return xerrors.Errorf("could not create description file: %w", err)
	}

	packedRefs := filepath.Join(b.root, gitpath.PackedRefsPath)
	exists, err := afero.Exists(b.fs, packedRefs)
	if err != nil {
		return xerrors.Errorf("could not check the packed-refs file: %w", err)
	}
	if !exists {
		if err := afero.WriteFile(b.fs, packedRefs, []byte("# pack-refs with: peeled fully-peeled sorted\n"), 0o644); err != nil {
			return xerrors.Errorf("could not create packed-refs file: %w", err)
		}
	}

	if err := b.setDefaultCfg(); err != nil {
		return xerrors.Errorf("could not set the default config: %w", err)
	}

	return b.loadExisting()
}

// Open loads the list of loose objects and packfiles already on disk,
// without touching the layout. Callers opening (rather than initializing)
// a repository should call this once before using the Backend.
func (b *Backend) Open() error {
	return b.loadExisting()
}

func (b *Backend) loadExisting() error {
	if err := b.loadLooseObject(); err != nil {
		return xerrors.Errorf("could not load loose objects: %w", err)
	}
	if err := b.loadPacks(); err != nil {
		return xerrors.Errorf("could not load packfiles: %w", err)
	}
	return nil
}
