package hub

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DownloadError reports a failed checkpoint or annotation download. The
// caller owns the retry policy; nothing in this package retries.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("hub: download of %s failed: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// CheckpointCache downloads checkpoints into a directory and reuses them on
// later fetches. Entries are keyed by the file name of the URL path.
type CheckpointCache struct {
	dir    string
	client *resty.Client
	log    logrus.FieldLogger
}

// NewCheckpointCache creates the cache directory if needed.
func NewCheckpointCache(dir string) (*CheckpointCache, error) {
	if dir == "" {
		return nil, errors.New("hub: empty cache directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create cache directory %s", dir)
	}
	return &CheckpointCache{
		dir:    dir,
		client: resty.New(),
		log:    logrus.StandardLogger().WithField("component", "checkpoint-cache"),
	}, nil
}

// Dir returns the cache directory.
func (c *CheckpointCache) Dir() string {
	return c.dir
}

// Fetch returns the local path of the checkpoint at rawURL, downloading it
// when absent. forceReload discards a cached copy and downloads again.
// Downloads go to a temporary file first so an interrupted transfer never
// leaves a half-written entry behind.
func (c *CheckpointCache) Fetch(ctx context.Context, rawURL string, forceReload bool) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", &DownloadError{URL: rawURL, Err: err}
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", &DownloadError{URL: rawURL, Err: errors.New("url has no file name")}
	}
	dst := filepath.Join(c.dir, name)

	if !forceReload {
		if _, err := os.Stat(dst); err == nil {
			c.log.WithField("path", dst).Debug("checkpoint already cached")
			return dst, nil
		}
	}

	c.log.WithFields(logrus.Fields{"url": rawURL, "path": dst}).Info("downloading checkpoint")
	tmp := dst + ".partial"
	resp, err := c.client.R().
		SetContext(ctx).
		SetOutput(tmp).
		Get(rawURL)
	if err != nil {
		os.Remove(tmp)
		return "", &DownloadError{URL: rawURL, Err: err}
	}
	if resp.IsError() {
		os.Remove(tmp)
		return "", &DownloadError{URL: rawURL, Err: errors.Errorf("server returned %s", resp.Status())}
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return "", &DownloadError{URL: rawURL, Err: err}
	}
	return dst, nil
}
