// Package assets fetches song and effect-bank bytes by id from a local
// directory or an HTTP server.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/pion/logging"
)

// ErrNotFound is returned when the id does not name an asset.
var ErrNotFound = errors.New("asset not found")

// maxAssetSize bounds a single download.
const maxAssetSize = 64 << 20

// Fetcher retrieves asset bytes by id. Ids are slash-separated relative
// paths such as "music/summer.wav".
type Fetcher interface {
	Fetch(ctx context.Context, id string) ([]byte, error)
}

// cleanID rejects ids that would escape the asset root.
func cleanID(id string) (string, error) {
	c := path.Clean("/" + id)[1:]
	if c == "" || c != strings.TrimPrefix(id, "/") {
		return "", fmt.Errorf("asset id %q: %w", id, ErrNotFound)
	}
	return c, nil
}

// Dir serves assets from a directory tree.
type Dir struct {
	root string
}

// NewDir creates a filesystem fetcher rooted at root.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// Fetch reads root/id.
func (d *Dir) Fetch(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rel, err := cleanID(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(d.root, filepath.FromSlash(rel)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("asset %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read asset %s: %w", id, err)
	}
	return data, nil
}

// HTTP fetches assets relative to a base URL.
type HTTP struct {
	base   string
	apiKey string
	http   *http.Client
	log    logging.LeveledLogger
}

// NewHTTP creates an HTTP fetcher. apiKey, when set, is sent as a bearer token.
func NewHTTP(base, apiKey string, log logging.LeveledLogger) *HTTP {
	return &HTTP{
		base:   strings.TrimRight(base, "/"),
		apiKey: apiKey,
		http:   &http.Client{Timeout: 30 * time.Second},
		log:    log,
	}
}

// WaitForHealthy blocks until the server answers HEAD on the base URL.
func (h *HTTP) WaitForHealthy(ctx context.Context, interval time.Duration) error {
	h.log.Infof("Waiting for asset server %s", h.base)
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, h.base+"/", nil)
		if err != nil {
			return fmt.Errorf("create health request: %w", err)
		}
		resp, err := h.http.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode < 500 {
				h.log.Info("Asset server is reachable")
				return nil
			}
		}

		h.log.Debugf("Asset server not ready, retrying in %v", interval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// Fetch downloads base/id.
func (h *HTTP) Fetch(ctx context.Context, id string) ([]byte, error) {
	rel, err := cleanID(id)
	if err != nil {
		return nil, err
	}
	u, err := url.JoinPath(h.base, strings.Split(rel, "/")...)
	if err != nil {
		return nil, fmt.Errorf("asset url %s: %w", id, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download asset %s: %w", id, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("asset %s: %w", id, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("download asset %s: status %d", id, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetSize+1))
	if err != nil {
		return nil, fmt.Errorf("read asset %s: %w", id, err)
	}
	if len(data) > maxAssetSize {
		return nil, fmt.Errorf("asset %s exceeds %d bytes", id, maxAssetSize)
	}
	h.log.Debugf("Fetched %s (%d bytes)", id, len(data))
	return data, nil
}

// Static serves assets held in memory, keyed by id.
type Static map[string][]byte

// Fetch returns the bytes stored under id.
func (s Static) Fetch(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, ok := s[id]
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", id, ErrNotFound)
	}
	return data, nil
}
