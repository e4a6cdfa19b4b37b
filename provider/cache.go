package provider

import (
	"bufio"
	"bytes"
	"crypto/sha1"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"os"
	"path/filepath"
	"time"

	"github.com/etnz/pricedb/date"
)

// diskCache implements a simple disk cache for HTTP responses.
//
// Entries are keyed by the current UTC day, so the cache expires every day.
type diskCache struct {
	base   http.RoundTripper
	dir    string // empty is os.TempDir()
	logger *slog.Logger
}

// RoundTrip implements the http.RoundTripper interface. It checks for a cached
// response on disk first. If none is found, it performs the request and caches
// the response if it is successful. Error envelopes are never cached, even
// with a 2xx status.
func (c *diskCache) RoundTrip(req *http.Request) (resp *http.Response, err error) {
	// the api key is part of the key, so that two accounts never share entries.
	key := fmt.Sprintf("%s %s %s %s", date.Today(), req.Method, req.URL.String(), req.Header.Get("apikey"))
	key = fmt.Sprintf("pricedb-%x", sha1.Sum([]byte(key)))

	cachedResp, err := c.get(key, req)
	if err == nil { // Cache hit
		c.logger.Debug("cache hit", "path", req.URL.Path)
		return cachedResp, nil
	}

	resp, err = c.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return resp, nil
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	if doc, err := decodeJSON(body); err == nil && unsuccessful(doc) {
		c.logger.Debug("error envelope not cached", "path", req.URL.Path)
		return resp, nil
	}

	if err := c.put(key, resp); err != nil {
		c.logger.Warn("cache write error (ignored)", "error", err)
	}
	return resp, nil
}

func (c *diskCache) file(key string) string {
	dir := c.dir
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, key)
}

// get retrieves a cached response from disk
func (c *diskCache) get(key string, req *http.Request) (resp *http.Response, err error) {
	content, err := os.ReadFile(c.file(key))
	if err != nil {
		return nil, err
	}
	return http.ReadResponse(bufio.NewReader(bytes.NewBuffer(content)), req)
}

// put stores a response to disk cache. The response body remains readable.
func (c *diskCache) put(key string, resp *http.Response) (err error) {
	content, err := httputil.DumpResponse(resp, true)
	if err != nil {
		return err
	}
	return os.WriteFile(c.file(key), content, 0o600)
}

// NewHTTPClient returns the client used to reach the provider.
//
// With cache set, successful responses are kept on disk for the rest of the
// UTC day, so repeated runs on the same day do not spend API quota.
func NewHTTPClient(timeout time.Duration, cache bool, logger *slog.Logger) *http.Client {
	if logger == nil {
		logger = slog.Default()
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}

	client := &http.Client{Timeout: timeout, Transport: transport}
	if cache {
		client.Transport = &diskCache{base: transport, logger: logger}
	}
	return client
}
