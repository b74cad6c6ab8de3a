package gitgo

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/bhorowitz/gitgo/ginternals"
	"github.com/bhorowitz/gitgo/ginternals/packfile"
	"github.com/bhorowitz/gitgo/internal/transport"
	"golang.org/x/xerrors"
)

// Clone fetches the repository hosted at remoteURL over the smart-HTTP
// protocol and materializes it at dest: the object database, every
// advertised branch ref, and a checkout of the remote's HEAD branch.
//
// The repository is built in a scratch directory next to dest and only
// moved into place once every step has succeeded, so a failed clone
// never leaves a partial repository at dest.
func Clone(ctx context.Context, remoteURL, dest string) (*Repository, error) {
	if _, err := os.Stat(dest); err == nil {
		return nil, xerrors.Errorf("destination %s: %w", dest, ErrRepositoryExists)
	}

	scratch, err := os.MkdirTemp(filepath.Dir(dest), ".gitgo-clone-*")
	if err != nil {
		return nil, xerrors.Errorf("could not create scratch directory: %w", err)
	}
	succeeded := false
	defer func() {
		if !succeeded {
			os.RemoveAll(scratch)
		}
	}()

	client := transport.NewClient(remoteURL)

	adv, err := client.DiscoverRefs(ctx)
	if err != nil {
		return nil, xerrors.Errorf("could not discover refs on %s: %w", remoteURL, err)
	}

	headBranch, ok := headBranchName(adv)
	if !ok {
		return nil, xerrors.Errorf("remote %s has no HEAD branch: %w", remoteURL, transport.ErrProtocol)
	}

	r, err := InitRepository(scratch)
	if err != nil {
		return nil, xerrors.Errorf("could not init scratch repository: %w", err)
	}

	if err := downloadPack(ctx, client, r, adv.HeadOid); err != nil {
		return nil, xerrors.Errorf("could not fetch pack from %s: %w", remoteURL, err)
	}

	for _, ref := range adv.Refs {
		if !strings.HasPrefix(ref.Name, "refs/heads/") {
			continue
		}
		if err := r.WriteReference(ginternals.NewReference(ref.Name, ref.Oid)); err != nil {
			return nil, xerrors.Errorf("could not write ref %s: %w", ref.Name, err)
		}
	}

	if _, err := r.Checkout(headBranch); err != nil {
		return nil, xerrors.Errorf("could not checkout %s: %w", headBranch, err)
	}

	if err := r.Close(); err != nil {
		return nil, xerrors.Errorf("could not close scratch repository: %w", err)
	}

	if err := os.Rename(scratch, dest); err != nil {
		return nil, xerrors.Errorf("could not move repository into place: %w", err)
	}
	succeeded = true

	return OpenRepository(dest)
}

// headBranchName returns the short branch name (e.g. "main") of the ref
// the remote's HEAD points at.
func headBranchName(adv *transport.RefAdvertisement) (string, bool) {
	for _, ref := range adv.Refs {
		if ref.IsHead && strings.HasPrefix(ref.Name, "refs/heads/") {
			return ginternals.LocalBranchShortName(ref.Name), true
		}
	}
	return "", false
}

// downloadPack fetches the packfile containing want and every object it
// depends on, and writes each decoded object into r's object database.
func downloadPack(ctx context.Context, client *transport.Client, r *Repository, want ginternals.Oid) (err error) {
	body, err := client.FetchPack(ctx, want)
	if err != nil {
		return xerrors.Errorf("could not request pack: %w", err)
	}
	defer func() {
		closeErr := body.Close()
		if err == nil {
			err = closeErr
		}
	}()

	pack, err := packfile.Decode(body)
	if err != nil {
		return xerrors.Errorf("could not decode pack: %w", err)
	}

	err = pack.WalkOids(func(oid ginternals.Oid) error {
		o, getErr := pack.GetObject(oid)
		if getErr != nil {
			return xerrors.Errorf("could not decode object %s: %w", oid.String(), getErr)
		}
		if _, writeErr := r.WriteObject(o); writeErr != nil {
			return xerrors.Errorf("could not store object %s: %w", oid.String(), writeErr)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return nil
}
