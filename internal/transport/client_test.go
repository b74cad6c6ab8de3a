package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bhorowitz/gitgo/ginternals"
	"github.com/stretchr/testify/require"
)

func pktLine(content string) string {
	return fmt.Sprintf("%04x%s", 4+len(content), content)
}

const (
	headOid  = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	otherOid = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func advertisementFixture() []byte {
	body := pktLine("# service=git-upload-pack\n")
	body += "0000"
	body += pktLine(headOid + " HEAD\x00multi_ack thin-pack\n")
	body += pktLine(headOid + " refs/heads/main\n")
	body += pktLine(otherOid + " refs/heads/dev\n")
	body += "0000"
	return []byte(body)
}

func TestParseAdvertisement(t *testing.T) {
	t.Parallel()

	adv, err := parseAdvertisement(advertisementFixture())
	require.NoError(t, err)
	require.Equal(t, headOid, adv.HeadOid.String())
	require.Len(t, adv.Refs, 2)

	byName := map[string]AdvertisedRef{}
	for _, r := range adv.Refs {
		byName[r.Name] = r
	}
	require.Equal(t, headOid, byName["refs/heads/main"].Oid.String())
	require.True(t, byName["refs/heads/main"].IsHead)
	require.Equal(t, otherOid, byName["refs/heads/dev"].Oid.String())
	require.False(t, byName["refs/heads/dev"].IsHead)
}

func TestParseAdvertisementMissingServiceHeader(t *testing.T) {
	t.Parallel()

	_, err := parseAdvertisement([]byte("0000"))
	require.ErrorIs(t, err, ErrProtocol)
}

func TestParseAdvertisementNotTerminated(t *testing.T) {
	t.Parallel()

	body := pktLine("# service=git-upload-pack\n")
	_, err := parseAdvertisement([]byte(body))
	require.ErrorIs(t, err, ErrProtocol)
}

func TestSplitPktLinesTruncated(t *testing.T) {
	t.Parallel()

	_, err := splitPktLines([]byte("00ff12"))
	require.ErrorIs(t, err, ErrProtocol)
}

func TestDiscoverRefs(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/info/refs", r.URL.Path)
		require.Equal(t, "git-upload-pack", r.URL.Query().Get("service"))
		w.Header().Set("Content-Type", "application/x-git-upload-pack-advertisement")
		_, _ = w.Write(advertisementFixture())
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	adv, err := c.DiscoverRefs(context.Background())
	require.NoError(t, err)
	require.Len(t, adv.Refs, 2)
}

func TestDiscoverRefsBadContentType(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write(advertisementFixture())
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.DiscoverRefs(context.Background())
	require.ErrorIs(t, err, ErrProtocol)
}

func TestDiscoverRefsBadStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.DiscoverRefs(context.Background())
	require.ErrorIs(t, err, ErrProtocol)
}

func TestFetchPack(t *testing.T) {
	t.Parallel()

	packBytes := []byte("PACK-stub-bytes")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/git-upload-pack", r.URL.Path)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.Equal(t, "0032want "+headOid+"\n"+"0000"+"0009done\n", string(body))

		w.Header().Set("Content-Type", "application/x-git-upload-pack-result")
		_, _ = w.Write([]byte("0008NAK\n"))
		_, _ = w.Write(packBytes)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	oid, err := ginternals.NewOidFromStr(headOid)
	require.NoError(t, err)

	rc, err := c.FetchPack(context.Background(), oid)
	require.NoError(t, err)
	defer rc.Close()

	rest, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, packBytes, rest)
}

func TestFetchPackBadSentinel(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-git-upload-pack-result")
		_, _ = w.Write([]byte("not-a-sentinel"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	oid, err := ginternals.NewOidFromStr(headOid)
	require.NoError(t, err)

	_, err = c.FetchPack(context.Background(), oid)
	require.ErrorIs(t, err, ErrProtocol)
}
