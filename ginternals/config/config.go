// Package config contains structs to interact with git configuration
// as well as to configure the library.
//
// Unlike git itself, this package never consumes environment variables:
// everything a caller wants to override is passed in explicitly, as
// data, rather than picked up implicitly from the process environment.
package config

import (
	"path/filepath"

	"github.com/bhorowitz/gitgo/internal/gitpath"
	"github.com/bhorowitz/gitgo/internal/pathutil"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
)

// Config represents the resolved location of a repository's files:
// the .git directory, the working tree, the object store, and the
// local config file.
//
// If you build a Config by hand rather than through Discover or New,
// make sure every field is set to a sensible value.
type Config struct {
	// FS is the filesystem implementation used to look for files and
	// directories. New and Discover set it to the filesystem they are
	// given; no default is applied.
	FS afero.Fs

	// GitDirPath is the path to the .git directory.
	GitDirPath string
	// CommonDirPath is the path to the directory refs and packed-refs
	// are shared from. It's equal to GitDirPath except when the
	// repository uses a linked working tree, which this package doesn't
	// support yet: the two are always the same today.
	CommonDirPath string
	// WorkTreePath is the path to the working tree, empty for a bare
	// repository.
	WorkTreePath string
	// ObjectDirPath is the path to the .git/objects directory.
	ObjectDirPath string
	// LocalConfig is the path to the .git/config file.
	LocalConfig string
}

// New returns a Config rooted at the given .git directory, without
// looking anything up on disk. This is what a repository Init should
// use, since the repository doesn't exist yet.
func New(fs afero.Fs, gitDirPath string, isBare bool) *Config {
	cfg := &Config{
		FS:            fs,
		GitDirPath:    gitDirPath,
		CommonDirPath: gitDirPath,
		ObjectDirPath: filepath.Join(gitDirPath, gitpath.ObjectsPath),
		LocalConfig:   filepath.Join(gitDirPath, gitpath.ConfigPath),
	}
	if !isBare {
		cfg.WorkTreePath = filepath.Dir(gitDirPath)
	}
	return cfg
}

// Discover walks up from workingDirectory looking for a .git directory
// and returns a Config describing the repository it found. Bare
// repositories are not detected: the returned Config always has a
// working tree.
func Discover(fs afero.Fs, workingDirectory string) (*Config, error) {
	workTree, err := pathutil.WorkingTreeFromPath(workingDirectory)
	if err != nil {
		return nil, xerrors.Errorf("could not find working tree: %w", err)
	}
	return New(fs, filepath.Join(workTree, gitpath.DotGitPath), false), nil
}
