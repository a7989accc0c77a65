package dovetail

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/dovetail/internal/catalog"
	dterrors "github.com/five82/dovetail/internal/errors"
	"github.com/five82/dovetail/internal/media"
)

type staticCatalog struct {
	items  []media.MediaItem
	filter catalog.Filter
}

func (s *staticCatalog) Query(_ context.Context, f catalog.Filter) ([]media.MediaItem, error) {
	s.filter = f
	return s.items, nil
}

func item(id string, dovi *media.DoViMetadata) media.MediaItem {
	return media.MediaItem{
		ID:        id,
		Container: media.ContainerMatroska,
		Sources: []media.MediaSource{{
			Path:      filepath.Join("/library", id+".mkv"),
			Container: media.ContainerMatroska,
			Streams:   []media.StreamDescriptor{{Type: media.StreamVideo, Codec: "hevc", DoVi: dovi}},
		}},
	}
}

func TestNewRequiresLibraryRoots(t *testing.T) {
	_, err := New()
	require.Error(t, err)
	assert.True(t, dterrors.IsKind(err, dterrors.KindConfig))
}

func TestParseFallbackMode(t *testing.T) {
	m, err := ParseFallbackMode("ReEncode")
	require.NoError(t, err)
	assert.Equal(t, FallbackReencode, m)

	_, err = ParseFallbackMode("transcode")
	assert.Error(t, err)
}

func TestNewSelectsRescanner(t *testing.T) {
	c, err := New(WithLibraryRoots(t.TempDir()))
	require.NoError(t, err)
	assert.IsType(t, catalog.LogRescanner{}, c.rescanner)

	cfg := c.Config()
	cfg.RescanURL = "http://jellyfin.local:8096"
	c, err = New(WithConfig(cfg))
	require.NoError(t, err)
	assert.IsType(t, &catalog.HTTPRescanner{}, c.rescanner)
}

func TestNewVerifiesUnlessSkipped(t *testing.T) {
	c, err := New(WithLibraryRoots(t.TempDir()))
	require.NoError(t, err)
	assert.NotNil(t, c.verifier)

	cfg := c.Config()
	cfg.SkipVerify = true
	c, err = New(WithConfig(cfg))
	require.NoError(t, err)
	assert.Nil(t, c.verifier)
}

func TestClassify(t *testing.T) {
	cat := &staticCatalog{items: []media.MediaItem{
		item("remux", &media.DoViMetadata{Profile: 8, BLCompatibilityID: media.IntPtr(1), BLPresentFlag: media.IntPtr(1)}),
		item("strip", &media.DoViMetadata{Profile: 8, BLCompatibilityID: media.IntPtr(2), BLPresentFlag: media.IntPtr(1)}),
		item("hdr10", nil),
	}}
	c, err := New(WithLibraryRoots("/library"), WithCatalog(cat))
	require.NoError(t, err)

	decisions, err := c.Classify(context.Background())
	require.NoError(t, err)
	require.Len(t, decisions, 3)
	assert.Equal(t, Remux, decisions[0].Classification)
	assert.Equal(t, FallbackConvert, decisions[1].Classification)
	assert.Equal(t, Skip, decisions[2].Classification)

	assert.Equal(t, []string{"/library"}, cat.filter.Roots)
	assert.Equal(t, catalog.KindVideo, cat.filter.Kind)
}

func TestRunDryRunTouchesNothing(t *testing.T) {
	cat := &staticCatalog{items: []media.MediaItem{
		item("remux", &media.DoViMetadata{Profile: 8, BLCompatibilityID: media.IntPtr(1), BLPresentFlag: media.IntPtr(1)}),
		item("hdr10", nil),
	}}
	c, err := New(WithLibraryRoots(t.TempDir()), WithCatalog(cat), WithDryRun())
	require.NoError(t, err)

	res, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 0, res.Converted)
	assert.Equal(t, 2, res.Skipped)
	assert.Empty(t, res.Failures)
	assert.False(t, res.RescanRequested)
}
