// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package bytesource implements the Byte Reader (C3): fetching a byte range
// from a local file or an object-store URL, with handles cached by URL and
// closed on idle eviction, grounded on S3Utils.java/RandomAccessObject.java.
// Object-store access uses net/http Range GETs against a MinIO-compatible
// endpoint since no S3/MinIO client ships in the retrieved example corpus
// (see DESIGN.md) — the one deliberate stdlib-only component of the core.
package bytesource

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/hoxca/fpimageio/internal/fits"
	"github.com/hoxca/fpimageio/internal/fiterr"
	"github.com/hoxca/fpimageio/internal/fplog"
)

const idleExpiry = time.Minute

// Handle is a reusable, positional-read source over one local file or one
// object-store object. It satisfies internal/fits.FileHandle.
type Handle interface {
	ReadAt(p []byte, off int64) (int, error)
	Size() int64
	Close() error
}

// Cache keeps one Handle per URL, evicting and closing handles idle for
// longer than one minute, matching S3Utils' raoCache/fileCache pair.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

type entry struct {
	handle     Handle
	lastAccess time.Time
}

// NewCache constructs an empty handle cache. Callers should periodically
// call Sweep (e.g. from a ticker) to evict idle handles; Open itself never
// blocks on sweeping.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*entry), now: time.Now}
}

// Open returns the cached Handle for descriptor, creating and caching one
// if absent. The open itself runs outside the mutex, so concurrent first
// opens of the same descriptor may each open a handle; the first one cached
// wins and the others are closed. descriptor is either a local filesystem
// path or an "s3:<endpoint>/<bucket>/<object>" URL.
func (c *Cache) Open(descriptor string) (Handle, error) {
	c.mu.Lock()
	if e, ok := c.entries[descriptor]; ok {
		e.lastAccess = c.now()
		h := e.handle
		c.mu.Unlock()
		return h, nil
	}
	c.mu.Unlock()

	h, err := openHandle(descriptor)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if e, ok := c.entries[descriptor]; ok {
		// Lost the race; close what we just opened and reuse the winner.
		c.mu.Unlock()
		h.Close()
		e.lastAccess = c.now()
		return e.handle, nil
	}
	c.entries[descriptor] = &entry{handle: h, lastAccess: c.now()}
	c.mu.Unlock()
	return h, nil
}

// Sweep closes and evicts every handle idle for longer than idleExpiry.
func (c *Cache) Sweep() {
	cutoff := c.now().Add(-idleExpiry)
	c.mu.Lock()
	var toClose []Handle
	for k, e := range c.entries {
		if e.lastAccess.Before(cutoff) {
			toClose = append(toClose, e.handle)
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
	for _, h := range toClose {
		if err := h.Close(); err != nil {
			fplog.LogPrintf("bytesource: error closing idle handle: %v", err)
		}
	}
}

func openHandle(descriptor string) (Handle, error) {
	if strings.HasPrefix(descriptor, "s3:") {
		return newObjectHandle(descriptor)
	}
	return newFileHandle(descriptor)
}

// fileHandle wraps a local *os.File, matching the AsynchronousFileChannel
// path of S3Utils.readByteBufferAsyncFromFile.
type fileHandle struct {
	f    *os.File
	size int64
}

func newFileHandle(path string) (Handle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fiterr.NewIOError("open "+path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fiterr.NewIOError("stat "+path, err)
	}
	return &fileHandle{f: f, size: info.Size()}, nil
}

func (h *fileHandle) ReadAt(p []byte, off int64) (int, error) {
	n, err := h.f.ReadAt(p, off)
	if err != nil && n < len(p) {
		return n, fiterr.NewIOError("read", err)
	}
	return n, nil
}

func (h *fileHandle) Size() int64 { return h.size }

func (h *fileHandle) Close() error { return h.f.Close() }

// objectHandle fetches byte ranges from a MinIO-compatible object store via
// net/http Range GETs, matching RandomAccessObject's minio-backed reads but
// without pulling in a MinIO SDK (none is retrieved in the example corpus).
type objectHandle struct {
	client   *http.Client
	baseURL  string
	username string
	password string
	size     int64
}

// newObjectHandle parses an "s3:<endpoint>/<bucket>/<object>" descriptor,
// resolves credentials from MC_HOST_<endpoint>, and issues a HEAD request to
// learn the freshness-tag file size, mirroring
// S3Utils.createRandomAccessObjectFor's env-var credential parsing.
func newObjectHandle(descriptor string) (Handle, error) {
	rest := strings.TrimPrefix(descriptor, "s3:")
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) != 3 {
		return nil, &fiterr.MalformedDescriptor{Descriptor: descriptor, Reason: "expected s3:<endpoint>/<bucket>/<object>"}
	}
	endpoint, bucket, object := parts[0], parts[1], parts[2]

	envVal := os.Getenv("MC_HOST_" + endpoint)
	if envVal == "" {
		return nil, fiterr.NewIOError("resolve object-store endpoint "+endpoint,
			fmt.Errorf("missing MC_HOST_%s environment variable", endpoint))
	}
	u, err := url.Parse(envVal)
	if err != nil || u.User == nil {
		return nil, fiterr.NewIOError("parse MC_HOST_"+endpoint, fmt.Errorf("malformed credential URL"))
	}
	password, _ := u.User.Password()

	oh := &objectHandle{
		client:   &http.Client{Timeout: 30 * time.Second},
		baseURL:  fmt.Sprintf("%s://%s/%s/%s", u.Scheme, u.Host, bucket, object),
		username: u.User.Username(),
		password: password,
	}

	size, err := oh.head()
	if err != nil {
		return nil, err
	}
	oh.size = size
	return oh, nil
}

func (h *objectHandle) head() (int64, error) {
	req, err := http.NewRequest(http.MethodHead, h.baseURL, nil)
	if err != nil {
		return 0, fiterr.NewIOError("build HEAD request for "+h.baseURL, err)
	}
	req.SetBasicAuth(h.username, h.password)
	resp, err := h.client.Do(req)
	if err != nil {
		return 0, &fiterr.TransientIOError{Op: "HEAD " + h.baseURL, Cause: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return 0, &fiterr.TransientIOError{Op: "HEAD " + h.baseURL, Cause: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 400 {
		return 0, fiterr.NewIOError("HEAD "+h.baseURL, fmt.Errorf("status %d", resp.StatusCode))
	}
	return resp.ContentLength, nil
}

func (h *objectHandle) ReadAt(p []byte, off int64) (int, error) {
	req, err := http.NewRequest(http.MethodGet, h.baseURL, nil)
	if err != nil {
		return 0, fiterr.NewIOError("build range GET for "+h.baseURL, err)
	}
	req.SetBasicAuth(h.username, h.password)
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", off, off+int64(len(p))-1))

	resp, err := h.client.Do(req)
	if err != nil {
		return 0, &fiterr.TransientIOError{Op: "GET " + h.baseURL, Cause: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return 0, &fiterr.TransientIOError{Op: "GET " + h.baseURL, Cause: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK {
		return 0, fiterr.NewIOError("GET "+h.baseURL, fmt.Errorf("status %d", resp.StatusCode))
	}

	total := 0
	for total < len(p) {
		n, err := resp.Body.Read(p[total:])
		total += n
		if err != nil {
			if total == len(p) {
				break
			}
			return total, fiterr.NewIOError("GET "+h.baseURL, err)
		}
	}
	return total, nil
}

func (h *objectHandle) Size() int64 { return h.size }

func (h *objectHandle) Close() error { return nil }

// AsOpener adapts Cache to internal/fits.Opener, covariantly widening the
// returned Handle to a fits.FileHandle.
func (c *Cache) AsOpener() fits.Opener { return openerAdapter{c} }

type openerAdapter struct{ c *Cache }

func (a openerAdapter) Open(descriptor string) (fits.FileHandle, error) {
	return a.c.Open(descriptor)
}
