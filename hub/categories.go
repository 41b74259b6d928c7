package hub

import (
	"archive/zip"
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultAnnotationsURL is the COCO 2017 annotation archive the category
// names are extracted from.
const DefaultAnnotationsURL = "https://images.cocodataset.org/annotations/annotations_trainval2017.zip"

const (
	categoryFileName    = "category_names.txt"
	instancesEntryName  = "annotations/instances_val2017.json"
	annotationsTempName = "annotations.zip.partial"
)

// CategoryCache resolves the ordered COCO category names, downloading and
// extracting the annotation archive once and caching the names as a plain
// text file afterwards. All state lives under the injected directory.
type CategoryCache struct {
	dir    string
	url    string
	client *resty.Client
	log    logrus.FieldLogger
}

// NewCategoryCache creates a cache rooted at dir. url overrides the
// annotation archive location; empty means DefaultAnnotationsURL.
func NewCategoryCache(dir, url string) (*CategoryCache, error) {
	if dir == "" {
		return nil, errors.New("hub: empty category cache directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create cache directory %s", dir)
	}
	if url == "" {
		url = DefaultAnnotationsURL
	}
	return &CategoryCache{
		dir:    dir,
		url:    url,
		client: resty.New(),
		log:    logrus.StandardLogger().WithField("component", "category-cache"),
	}, nil
}

// Names returns the COCO category names ordered by category id. The list
// does not include the background class; detection class index k maps to
// Names()[k-1].
func (c *CategoryCache) Names(ctx context.Context) ([]string, error) {
	cached := filepath.Join(c.dir, categoryFileName)
	if names, err := readCategoryFile(cached); err == nil {
		return names, nil
	}

	names, err := c.fetchNames(ctx)
	if err != nil {
		return nil, err
	}
	if err := writeCategoryFile(cached, names); err != nil {
		return nil, err
	}
	return names, nil
}

// ClassName maps a decoder class index (1-based, 0 is background) to its
// category name.
func (c *CategoryCache) ClassName(ctx context.Context, class int) (string, error) {
	names, err := c.Names(ctx)
	if err != nil {
		return "", err
	}
	if class < 1 || class > len(names) {
		return "", errors.Errorf("hub: class index %d outside [1, %d]", class, len(names))
	}
	return names[class-1], nil
}

func (c *CategoryCache) fetchNames(ctx context.Context) ([]string, error) {
	archivePath := filepath.Join(c.dir, annotationsTempName)
	defer os.Remove(archivePath)

	c.log.WithField("url", c.url).Info("downloading annotation archive")
	resp, err := c.client.R().
		SetContext(ctx).
		SetOutput(archivePath).
		Get(c.url)
	if err != nil {
		return nil, &DownloadError{URL: c.url, Err: err}
	}
	if resp.IsError() {
		return nil, &DownloadError{URL: c.url, Err: errors.Errorf("server returned %s", resp.Status())}
	}

	return extractCategories(archivePath)
}

func extractCategories(archivePath string) ([]string, error) {
	archive, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open annotation archive")
	}
	defer archive.Close()

	for _, entry := range archive.File {
		if entry.Name != instancesEntryName {
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open %s", entry.Name)
		}
		defer rc.Close()

		var instances struct {
			Categories []struct {
				ID   int    `json:"id"`
				Name string `json:"name"`
			} `json:"categories"`
		}
		if err := json.NewDecoder(rc).Decode(&instances); err != nil {
			return nil, errors.Wrapf(err, "failed to parse %s", entry.Name)
		}
		if len(instances.Categories) == 0 {
			return nil, errors.Errorf("%s lists no categories", entry.Name)
		}

		sort.Slice(instances.Categories, func(i, j int) bool {
			return instances.Categories[i].ID < instances.Categories[j].ID
		})
		names := make([]string, len(instances.Categories))
		for i, cat := range instances.Categories {
			names[i] = cat.Name
		}
		return names, nil
	}
	return nil, errors.Errorf("annotation archive has no %s entry", instancesEntryName)
}

func readCategoryFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			names = append(names, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, errors.Errorf("category file %s is empty", path)
	}
	return names, nil
}

func writeCategoryFile(path string, names []string) error {
	var sb strings.Builder
	for _, name := range names {
		sb.WriteString(name)
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write category file %s", path)
	}
	return nil
}
