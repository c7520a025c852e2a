// Package shellcache implements the network interception layer for the
// scouting app shell: request classification with a per-class caching
// strategy, backed by versioned cache generations with an install/activate
// lifecycle. It is modeled as an http.RoundTripper so it can sit in front of
// any client the UI uses.
package shellcache

import (
	"bufio"
	"bytes"
	"net/http"
	"net/http/httputil"
)

// Snapshot is an immutable byte capture of a response, including status line
// and headers, taken at cache-write time.
type Snapshot []byte

// SnapshotResponse captures resp into a Snapshot. Dumping buffers and
// restores resp.Body, so the live response remains usable by the caller.
func SnapshotResponse(resp *http.Response) (Snapshot, error) {
	raw, err := httputil.DumpResponse(resp, true)
	if err != nil {
		return nil, err
	}
	return Snapshot(raw), nil
}

// Response rebuilds an *http.Response from the snapshot, associated with req.
// Each call yields an independent body.
func (s Snapshot) Response(req *http.Request) (*http.Response, error) {
	return http.ReadResponse(bufio.NewReader(bytes.NewReader(s)), req)
}
