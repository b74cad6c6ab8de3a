// Package transport implements the client side of the smart-HTTP
// protocol used to clone a remote repository: reference discovery over
// GET /info/refs, and packfile retrieval over POST /git-upload-pack.
//
// The underlying round-tripper is a plain net/http.Client; this package
// owns only the pkt-line framing layered on top of it.
package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/bhorowitz/gitgo/ginternals"
	"golang.org/x/xerrors"
)

// ErrProtocol is returned when the server's response doesn't follow the
// smart-HTTP wire format this client expects.
var ErrProtocol = errors.New("smart-http protocol violation")

// AdvertisedRef is a single ref reported by the server during reference
// discovery.
type AdvertisedRef struct {
	Oid    ginternals.Oid
	Name   string
	IsHead bool
}

// RefAdvertisement is the parsed result of a reference-discovery
// request.
type RefAdvertisement struct {
	HeadOid ginternals.Oid
	Refs    []AdvertisedRef
}

// Client speaks the smart-HTTP protocol against a single remote.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient returns a Client that talks to the upload-pack service
// rooted at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
}

// DiscoverRefs performs the GET /info/refs?service=git-upload-pack
// request and parses the advertised refs out of the response.
func (c *Client) DiscoverRefs(ctx context.Context) (adv *RefAdvertisement, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/info/refs?service=git-upload-pack", nil)
	if err != nil {
		return nil, xerrors.Errorf("could not build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, xerrors.Errorf("could not reach %s: %w", c.baseURL, err)
	}
	defer func() {
		closeErr := resp.Body.Close()
		if err == nil {
			err = closeErr
		}
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotModified {
		return nil, xerrors.Errorf("unexpected status %d: %w", resp.StatusCode, ErrProtocol)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/x-git-upload-pack-advertisement" {
		return nil, xerrors.Errorf("unexpected content-type %q: %w", ct, ErrProtocol)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, xerrors.Errorf("could not read response body: %w", err)
	}

	adv, err = parseAdvertisement(body)
	if err != nil {
		return nil, xerrors.Errorf("could not parse ref advertisement: %w", err)
	}
	return adv, nil
}

// FetchPack performs the POST /git-upload-pack request asking for want,
// and returns the response body positioned right after the leading NAK
// sentinel, ready to be handed to packfile.Decode. The caller owns the
// returned ReadCloser and must Close it.
func (c *Client) FetchPack(ctx context.Context, want ginternals.Oid) (pack io.ReadCloser, err error) {
	reqBody := "0032want " + want.String() + "\n" + "0000" + "0009done\n"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/git-upload-pack", strings.NewReader(reqBody))
	if err != nil {
		return nil, xerrors.Errorf("could not build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-git-upload-pack-request")
	req.Header.Set("Accept", "application/x-git-upload-pack-result")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, xerrors.Errorf("could not reach %s: %w", c.baseURL, err)
	}
	defer func() {
		if err != nil {
			resp.Body.Close()
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, xerrors.Errorf("unexpected status %d: %w", resp.StatusCode, ErrProtocol)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/x-git-upload-pack-result" {
		return nil, xerrors.Errorf("unexpected content-type %q: %w", ct, ErrProtocol)
	}

	var sentinel [8]byte
	if _, err = io.ReadFull(resp.Body, sentinel[:]); err != nil {
		return nil, xerrors.Errorf("could not read NAK sentinel: %w", err)
	}
	if string(sentinel[:]) != "0008NAK\n" {
		return nil, xerrors.Errorf("unexpected sentinel %q: %w", sentinel[:], ErrProtocol)
	}

	return resp.Body, nil
}

// splitPktLines splits body into its pkt-line payloads. A flush pkt
// (length 0000) is represented as a nil entry.
func splitPktLines(body []byte) ([][]byte, error) {
	var lines [][]byte
	i := 0
	for i < len(body) {
		if i+4 > len(body) {
			return nil, xerrors.Errorf("truncated pkt-line length: %w", ErrProtocol)
		}
		n, err := strconv.ParseUint(string(body[i:i+4]), 16, 32)
		if err != nil {
			return nil, xerrors.Errorf("invalid pkt-line length %q: %w", body[i:i+4], ErrProtocol)
		}
		if n == 0 {
			lines = append(lines, nil)
			i += 4
			continue
		}
		if i+int(n) > len(body) {
			return nil, xerrors.Errorf("truncated pkt-line body: %w", ErrProtocol)
		}
		lines = append(lines, body[i+4:i+int(n)])
		i += int(n)
	}
	return lines, nil
}

// parseAdvertisement decodes the body of a reference-discovery
// response: a `#`-prefixed service announcement pkt-line, followed by
// one pkt-line per advertised ref (the first of which is the
// pseudo-ref "HEAD", used only to learn the peeled HEAD digest),
// terminated by a flush pkt.
func parseAdvertisement(body []byte) (*RefAdvertisement, error) {
	if len(body) < 5 || body[4] != '#' {
		return nil, xerrors.Errorf("missing service header: %w", ErrProtocol)
	}
	if !bytes.HasSuffix(body, []byte("0000")) {
		return nil, xerrors.Errorf("advertisement not terminated by a flush: %w", ErrProtocol)
	}

	lines, err := splitPktLines(body)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 || lines[0] == nil {
		return nil, xerrors.Errorf("missing service line: %w", ErrProtocol)
	}
	if !bytes.HasSuffix(bytes.TrimRight(lines[0], "\n"), []byte("service=git-upload-pack")) {
		return nil, xerrors.Errorf("unexpected service line %q: %w", lines[0], ErrProtocol)
	}

	var headOid ginternals.Oid
	haveHead := false
	first := true
	refs := make([]AdvertisedRef, 0, len(lines))

	for _, raw := range lines[1:] {
		if raw == nil { // flush
			continue
		}
		line := raw
		if i := bytes.IndexByte(line, 0); i >= 0 {
			line = line[:i]
		}
		line = bytes.TrimRight(line, "\n")

		parts := bytes.SplitN(line, []byte(" "), 2)
		if len(parts) != 2 {
			return nil, xerrors.Errorf("malformed ref line %q: %w", raw, ErrProtocol)
		}
		oid, err := ginternals.NewOidFromChars(parts[0])
		if err != nil {
			return nil, xerrors.Errorf("invalid ref digest %q: %w", parts[0], err)
		}
		name := string(parts[1])

		if first {
			first = false
			headOid = oid
			haveHead = true
			if name == "HEAD" {
				continue
			}
		}
		refs = append(refs, AdvertisedRef{Oid: oid, Name: name})
	}
	if !haveHead {
		return nil, xerrors.Errorf("advertisement has no refs: %w", ErrProtocol)
	}

	for i := range refs {
		if refs[i].Oid == headOid {
			refs[i].IsHead = true
			break
		}
	}

	return &RefAdvertisement{HeadOid: headOid, Refs: refs}, nil
}
