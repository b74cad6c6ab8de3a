package config

import (
	"bytes"
	"os"
	"strconv"

	"github.com/spf13/afero"
	"golang.org/x/xerrors"
	"gopkg.in/ini.v1"
)

//nolint:gochecknoglobals // treated as a const; never mutated after init
var loadOptions = ini.LoadOptions{
	SkipUnrecognizableLines: true,
}

// LocalFile wraps the repository's local .git/config file, parsed with
// gopkg.in/ini.v1. Unlike git itself this never merges in a system or
// global config: only the repository's own file is consulted.
type LocalFile struct {
	path string
	fs   afero.Fs
	ini  *ini.File
}

// LoadLocalFile reads the repository's local config file. A missing
// file isn't an error: an empty configuration, holding no keys, is
// returned instead.
func LoadLocalFile(cfg *Config) (*LocalFile, error) {
	lf := &LocalFile{path: cfg.LocalConfig, fs: cfg.FS}

	f, err := cfg.FS.Open(cfg.LocalConfig)
	switch {
	case err == nil:
		defer f.Close() //nolint:errcheck // read-only, nothing to propagate
		buf := new(bytes.Buffer)
		if _, err := buf.ReadFrom(f); err != nil {
			return nil, xerrors.Errorf("could not read %s: %w", cfg.LocalConfig, err)
		}
		lf.ini, err = ini.LoadSources(loadOptions, buf.Bytes())
		if err != nil {
			return nil, xerrors.Errorf("could not parse %s: %w", cfg.LocalConfig, err)
		}
	case os.IsNotExist(err):
		lf.ini = ini.Empty(loadOptions)
	default:
		return nil, xerrors.Errorf("could not open %s: %w", cfg.LocalConfig, err)
	}

	return lf, nil
}

// Save persists any changes made through the Update* methods.
func (lf *LocalFile) Save() error {
	buf := new(bytes.Buffer)
	if _, err := lf.ini.WriteTo(buf); err != nil {
		return xerrors.Errorf("could not render config: %w", err)
	}
	return afero.WriteFile(lf.fs, lf.path, buf.Bytes(), 0o644)
}

// RepoFormatVersion returns core.repositoryformatversion.
func (lf *LocalFile) RepoFormatVersion() (version int, ok bool) {
	v, err := lf.ini.Section("core").Key("repositoryformatversion").Int()
	if err != nil {
		return 0, false
	}
	return v, true
}

// UpdateRepoFormatVersion sets core.repositoryformatversion.
func (lf *LocalFile) UpdateRepoFormatVersion(ver string) {
	lf.ini.Section("core").Key("repositoryformatversion").SetValue(ver)
}

// DefaultBranch returns init.defaultBranch, if set.
func (lf *LocalFile) DefaultBranch() (name string, ok bool) {
	v := lf.ini.Section("init").Key("defaultBranch").String()
	return v, v != ""
}

// WorkTree returns core.worktree, if set.
func (lf *LocalFile) WorkTree() (workTree string, ok bool) {
	v := lf.ini.Section("core").Key("worktree").String()
	return v, v != ""
}

// IsBare returns core.bare, if set.
func (lf *LocalFile) IsBare() (isBare, ok bool) {
	v, err := lf.ini.Section("core").Key("bare").Bool()
	if err != nil {
		return false, false
	}
	return v, true
}

// UpdateIsBare sets core.bare.
func (lf *LocalFile) UpdateIsBare(isBare bool) {
	lf.ini.Section("core").Key("bare").SetValue(strconv.FormatBool(isBare))
}
