// Package validation checks a converted file before it replaces the original.
package validation

import (
	"context"

	"github.com/five82/dovetail/internal/media"
)

// MediaAnalyzer describes a file. *ffprobe.Prober implements it; tests use
// a stub so validation runs without external tools.
type MediaAnalyzer interface {
	Probe(ctx context.Context, path string) (media.MediaSource, error)
}
