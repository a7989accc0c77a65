// Package dovetail converts Dolby Vision media libraries to profile 8.1 in
// place.
//
// Every Matroska file in the library roots is probed. Profile 8 sources
// whose base layer is HDR10 compatible get their RPU converted and are
// remuxed; other profile 8 sources fall back to stripping the enhancement
// layer (or a full HDR10 re-encode). Everything else is left alone. A file
// is only ever replaced by an atomic rename after every stage succeeded.
//
// Basic usage:
//
//	conv, err := dovetail.New(
//	    dovetail.WithLibraryRoots("/media/movies"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := conv.Run(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("converted %d of %d items\n", result.Converted, result.Total)
package dovetail

import (
	"context"

	"github.com/five82/dovetail/internal/catalog"
	"github.com/five82/dovetail/internal/config"
	"github.com/five82/dovetail/internal/discovery"
	"github.com/five82/dovetail/internal/ffprobe"
	"github.com/five82/dovetail/internal/logging"
	"github.com/five82/dovetail/internal/media"
	"github.com/five82/dovetail/internal/processing"
	"github.com/five82/dovetail/internal/reporter"
	"github.com/five82/dovetail/internal/validation"
)

// Re-exported types
type (
	Config         = config.Config
	FallbackMode   = config.FallbackMode
	Classification = media.Classification
	MediaItem      = media.MediaItem
	Reporter       = reporter.Reporter
	Catalog        = catalog.Catalog
)

const (
	FallbackStrip    = config.FallbackStrip
	FallbackReencode = config.FallbackReencode

	Skip            = media.Skip
	Remux           = media.Remux
	FallbackConvert = media.FallbackConvert
)

// ParseFallbackMode converts "strip" or "reencode" (case-insensitive).
func ParseFallbackMode(s string) (FallbackMode, error) {
	return config.ParseFallbackMode(s)
}

// Converter runs conversions over a library.
type Converter struct {
	cfg       config.Config
	rep       reporter.Reporter
	logger    *logging.Logger
	catalog   catalog.Catalog
	rescanner catalog.Rescanner
	verifier  processing.Verifier
}

// Option configures a Converter.
type Option func(*Converter)

// WithConfig replaces the whole configuration. Later options still apply.
func WithConfig(cfg Config) Option {
	return func(c *Converter) { c.cfg = cfg }
}

// WithLibraryRoots sets the directories to scan.
func WithLibraryRoots(roots ...string) Option {
	return func(c *Converter) { c.cfg = c.cfg.With(config.WithLibraryRoots(roots...)) }
}

// WithFallbackMode selects strip or re-encode for unconvertible sources.
func WithFallbackMode(m FallbackMode) Option {
	return func(c *Converter) { c.cfg = c.cfg.With(config.WithFallbackMode(m)) }
}

// WithDryRun plans every conversion without running any tool.
func WithDryRun() Option {
	return func(c *Converter) { c.cfg = c.cfg.With(config.WithDryRun(true)) }
}

// WithReporter receives progress events.
func WithReporter(r Reporter) Option {
	return func(c *Converter) { c.rep = r }
}

// WithLogger sets the run logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Converter) { c.logger = l }
}

// WithCatalog replaces the filesystem catalog.
func WithCatalog(cat Catalog) Option {
	return func(c *Converter) { c.catalog = cat }
}

// WithRescanner replaces the rescan notifier chosen from the configuration.
func WithRescanner(r catalog.Rescanner) Option {
	return func(c *Converter) { c.rescanner = r }
}

// New creates a Converter. The configuration is validated once here and
// frozen.
func New(opts ...Option) (*Converter, error) {
	c := &Converter{cfg: *config.NewConfig()}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}

	if c.rep == nil {
		c.rep = reporter.NullReporter{}
	}
	prober := ffprobe.New(c.cfg.FFprobePath)
	if c.catalog == nil {
		c.catalog = catalog.NewFSCatalog(prober, c.logger)
	}
	if !c.cfg.SkipVerify {
		c.verifier = validation.NewVerifier(prober)
	}
	if c.rescanner == nil {
		if c.cfg.RescanURL != "" {
			c.rescanner = catalog.NewHTTPRescanner(c.cfg.RescanURL, c.cfg.RescanToken, catalog.WithRescanLogger(c.logger))
		} else {
			c.rescanner = catalog.LogRescanner{Log: c.logger}
		}
	}
	return c, nil
}

// Config returns a copy of the frozen configuration.
func (c *Converter) Config() Config {
	return c.cfg
}

// Decision is the classification of one source.
type Decision struct {
	ItemID         string
	Path           string
	Classification Classification
}

// Classify reports what Run would do without touching anything.
func (c *Converter) Classify(ctx context.Context) ([]Decision, error) {
	items, err := c.query(ctx)
	if err != nil {
		return nil, err
	}
	var out []Decision
	for _, item := range items {
		for _, d := range media.ClassifyItem(item) {
			out = append(out, Decision{ItemID: item.ID, Path: d.Source.Path, Classification: d.Classification})
		}
	}
	return out, nil
}

// ItemFailure describes one failed item.
type ItemFailure struct {
	ItemID   string
	Path     string
	Stage    string
	ExitCode int
	Err      error
	LogPaths []string
}

// BatchResult summarizes a Run.
type BatchResult struct {
	Total           int
	Converted       int
	Skipped         int
	Failed          int
	RescanRequested bool
	Failures        []ItemFailure
}

// Run converts every eligible item. Item failures are reported in the
// result; the error is only set for configuration problems, a failed
// catalog query or cancellation, in which case the result covers the items
// finished so far.
func (c *Converter) Run(ctx context.Context) (*BatchResult, error) {
	items, err := c.query(ctx)
	if err != nil {
		return nil, err
	}

	summary, err := processing.ProcessItems(ctx, c.cfg, items, processing.Deps{
		Reporter:  c.rep,
		Rescanner: c.rescanner,
		Verifier:  c.verifier,
		Logger:    c.logger,
	})
	return newBatchResult(summary), err
}

func (c *Converter) query(ctx context.Context) ([]media.MediaItem, error) {
	return c.catalog.Query(ctx, catalog.Filter{Kind: catalog.KindVideo, Roots: c.cfg.LibraryRoots})
}

func newBatchResult(s processing.Summary) *BatchResult {
	res := &BatchResult{
		Total:           s.Total,
		Converted:       s.Converted,
		Skipped:         s.Skipped,
		Failed:          s.Failed,
		RescanRequested: s.RescanRequested,
	}
	for _, item := range s.Items {
		if item.Err == nil {
			continue
		}
		res.Failures = append(res.Failures, ItemFailure{
			ItemID:   item.ItemID,
			Path:     item.Path,
			Stage:    item.FailedStage,
			ExitCode: item.ExitCode,
			Err:      item.Err,
			LogPaths: item.LogPaths,
		})
	}
	return res
}

// FindVideos lists video files under the given roots.
func FindVideos(roots ...string) ([]string, error) {
	return discovery.FindVideoFiles(roots...)
}
