// Package catalog supplies candidate media items and the library rescan signal.
package catalog

import (
	"context"
	"path/filepath"
	"strings"

	dterrors "github.com/five82/dovetail/internal/errors"
	"github.com/five82/dovetail/internal/discovery"
	"github.com/five82/dovetail/internal/logging"
	"github.com/five82/dovetail/internal/media"
	"github.com/five82/dovetail/internal/util"
)

// KindVideo matches every video item.
const KindVideo = "video"

// Filter narrows a catalog query.
type Filter struct {
	// Kind is the media kind. Empty means KindVideo.
	Kind string
	// Roots restricts results to items below these ancestors.
	Roots []string
}

// Catalog returns items with their sources, streams and Dolby Vision
// metadata populated. Results only include items eligible for
// classification: Matroska with at least one video stream.
type Catalog interface {
	Query(ctx context.Context, f Filter) ([]media.MediaItem, error)
}

// Prober describes a single file.
type Prober interface {
	Probe(ctx context.Context, path string) (media.MediaSource, error)
}

// FSCatalog treats every video file under the filter roots as one item.
type FSCatalog struct {
	prober Prober
	log    *logging.Logger
}

// NewFSCatalog creates a filesystem catalog probing files with p.
func NewFSCatalog(p Prober, log *logging.Logger) *FSCatalog {
	return &FSCatalog{prober: p, log: log}
}

// Query walks f.Roots. Files that cannot be probed are logged and left
// out. An empty library is not an error.
func (c *FSCatalog) Query(ctx context.Context, f Filter) ([]media.MediaItem, error) {
	if f.Kind != "" && f.Kind != KindVideo {
		return nil, nil
	}

	res, err := discovery.FindVideoFilesWithLogging(c.log, f.Roots...)
	if err != nil {
		if dterrors.IsNoFilesFound(err) {
			c.log.Info("%v", err)
			return nil, nil
		}
		return nil, err
	}
	for _, werr := range res.Errors {
		c.log.Warn("discovery: %v", werr)
	}

	var items []media.MediaItem
	for _, path := range res.Files {
		if err := ctx.Err(); err != nil {
			return nil, dterrors.NewCancelledError()
		}

		container := util.ContainerForPath(path)
		if container != media.ContainerMatroska {
			c.log.Debug("skipping %s: container %s", path, container)
			continue
		}

		src, err := c.prober.Probe(ctx, path)
		if err != nil {
			if dterrors.IsCancelled(err) {
				return nil, dterrors.NewCancelledError()
			}
			c.log.Warn("failed to probe %s: %v", path, err)
			continue
		}

		item := media.MediaItem{
			ID:        itemID(f.Roots, path),
			Name:      util.GetFileStem(path),
			Container: src.Container,
			Sources:   []media.MediaSource{src},
		}
		if !media.Eligible(item) {
			c.log.Debug("skipping %s: not eligible", path)
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// itemID is the path relative to the first root that contains it.
func itemID(roots []string, path string) string {
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(abs, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return filepath.ToSlash(rel)
	}
	return path
}
