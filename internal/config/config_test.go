package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	dterrors "github.com/five82/dovetail/internal/errors"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/library")

	if len(cfg.LibraryRoots) != 1 || cfg.LibraryRoots[0] != "/library" {
		t.Errorf("expected LibraryRoots=[/library], got %v", cfg.LibraryRoots)
	}

	// Check defaults
	if cfg.DoviMode != DefaultDoviMode {
		t.Errorf("expected DoviMode=%d, got %d", DefaultDoviMode, cfg.DoviMode)
	}
	if cfg.FallbackMode != FallbackStrip {
		t.Errorf("expected FallbackMode=strip, got %s", cfg.FallbackMode)
	}
	if cfg.ExcerptLines != DefaultExcerptLines {
		t.Errorf("expected ExcerptLines=%d, got %d", DefaultExcerptLines, cfg.ExcerptLines)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name         string
		modify       func(*Config)
		wantErr      bool
		wantSentinel error
	}{
		{
			name:    "default config is valid",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:         "no library roots",
			modify:       func(c *Config) { c.LibraryRoots = nil },
			wantErr:      true,
			wantSentinel: ErrNoLibraryRoots,
		},
		{
			name:         "empty library root",
			modify:       func(c *Config) { c.LibraryRoots = []string{"/a", ""} },
			wantErr:      true,
			wantSentinel: ErrNoLibraryRoots,
		},
		{
			name:         "missing dovi_tool",
			modify:       func(c *Config) { c.DoviToolPath = "" },
			wantErr:      true,
			wantSentinel: ErrMissingTool,
		},
		{
			name:         "unknown fallback mode",
			modify:       func(c *Config) { c.FallbackMode = "transcode" },
			wantErr:      true,
			wantSentinel: ErrInvalidFallbackMode,
		},
		{
			name:    "reencode fallback is valid",
			modify:  func(c *Config) { c.FallbackMode = FallbackReencode },
			wantErr: false,
		},
		{
			name:         "crf 52 is invalid",
			modify:       func(c *Config) { c.ReencodeCRF = 52 },
			wantErr:      true,
			wantSentinel: ErrInvalidCRF,
		},
		{
			name:    "crf 51 is valid",
			modify:  func(c *Config) { c.ReencodeCRF = 51 },
			wantErr: false,
		},
		{
			name:         "dovi mode 6 is invalid",
			modify:       func(c *Config) { c.DoviMode = 6 },
			wantErr:      true,
			wantSentinel: ErrInvalidDoviMode,
		},
		{
			name:    "unknown preset",
			modify:  func(c *Config) { c.ReencodePreset = "turbo" },
			wantErr: true,
		},
		{
			name:    "bad rescan url",
			modify:  func(c *Config) { c.RescanURL = "not a url" },
			wantErr: true,
		},
		{
			name:    "rescan url is valid",
			modify:  func(c *Config) { c.RescanURL = "http://jellyfin:8096" },
			wantErr: false,
		},
		{
			name:         "zero grace",
			modify:       func(c *Config) { c.TerminateGrace = 0 },
			wantErr:      true,
			wantSentinel: ErrInvalidGrace,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig("/library")
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !dterrors.IsKind(err, dterrors.KindConfig) {
				t.Errorf("Validate() error = %v, want KindConfig", err)
			}
			if tt.wantSentinel != nil && !errors.Is(err, tt.wantSentinel) {
				t.Errorf("Validate() error = %v, want sentinel %v", err, tt.wantSentinel)
			}
		})
	}
}

func TestParseFallbackMode(t *testing.T) {
	tests := []struct {
		input        string
		want         FallbackMode
		wantErr      bool
		wantSentinel error
	}{
		{"strip", FallbackStrip, false, nil},
		{"STRIP", FallbackStrip, false, nil},
		{"reencode", FallbackReencode, false, nil},
		{"ReEncode", FallbackReencode, false, nil},
		{"invalid", "", true, ErrInvalidFallbackMode},
		{"", "", true, ErrInvalidFallbackMode},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFallbackMode(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseFallbackMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if tt.wantSentinel != nil && !errors.Is(err, tt.wantSentinel) {
				t.Errorf("ParseFallbackMode(%q) error = %v, want sentinel %v", tt.input, err, tt.wantSentinel)
			}
			if got != tt.want {
				t.Errorf("ParseFallbackMode(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dovetail.yml")
	yaml := `library_roots:
  - /media/movies
  - /media/tv
dovi_tool_path: /opt/bin/dovi_tool
fallback_mode: reencode
reencode_crf: 20
terminate_grace: 2s
skip_verify: true
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.LibraryRoots) != 2 || cfg.LibraryRoots[1] != "/media/tv" {
		t.Errorf("LibraryRoots = %v", cfg.LibraryRoots)
	}
	if cfg.DoviToolPath != "/opt/bin/dovi_tool" {
		t.Errorf("DoviToolPath = %q", cfg.DoviToolPath)
	}
	if cfg.FallbackMode != FallbackReencode {
		t.Errorf("FallbackMode = %q", cfg.FallbackMode)
	}
	if cfg.ReencodeCRF != 20 {
		t.Errorf("ReencodeCRF = %d", cfg.ReencodeCRF)
	}
	if cfg.TerminateGrace != 2*time.Second {
		t.Errorf("TerminateGrace = %v", cfg.TerminateGrace)
	}
	if !cfg.SkipVerify {
		t.Error("SkipVerify should be read from the file")
	}
	// Unset fields take their defaults.
	if cfg.FFmpegPath != "ffmpeg" || cfg.DoviMode != DefaultDoviMode || cfg.ExcerptLines != DefaultExcerptLines {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DOVETAIL_LIBRARY_ROOTS", "/a,/b")
	t.Setenv("DOVETAIL_MKVMERGE", "/usr/local/bin/mkvmerge")
	t.Setenv("DOVETAIL_DRY_RUN", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.LibraryRoots) != 2 || cfg.LibraryRoots[0] != "/a" {
		t.Errorf("LibraryRoots = %v", cfg.LibraryRoots)
	}
	if cfg.MkvmergePath != "/usr/local/bin/mkvmerge" {
		t.Errorf("MkvmergePath = %q", cfg.MkvmergePath)
	}
	if !cfg.DryRun {
		t.Error("DryRun should be set from env")
	}
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dovetail.yml")
	if err := os.WriteFile(path, []byte("library_roots: [/x]\nfallback_mode: nope\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if !dterrors.IsKind(err, dterrors.KindConfig) {
		t.Fatalf("Load() error = %v, want config error", err)
	}
	if !errors.Is(err, ErrInvalidFallbackMode) {
		t.Errorf("Load() error = %v, want ErrInvalidFallbackMode", err)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yml")); !dterrors.IsKind(err, dterrors.KindConfig) {
		t.Errorf("missing file error = %v, want config error", err)
	}
}

func TestReadSkipsValidation(t *testing.T) {
	cfg, err := Read("")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(cfg.LibraryRoots) != 0 {
		t.Errorf("LibraryRoots = %v, want empty", cfg.LibraryRoots)
	}
	late := cfg.With(WithLibraryRoots("/late"))
	if err := late.Validate(); err != nil {
		t.Errorf("roots added after Read should validate: %v", err)
	}
}

func TestDirectoryFallbacks(t *testing.T) {
	cfg := NewConfig("/media/movies")
	if got := cfg.GetTempDir("/media/movies/A/a.mkv"); got != "/media/movies/A" {
		t.Errorf("GetTempDir() = %q, want source dir", got)
	}
	if got := cfg.GetLogDir(); got != filepath.Join("/media/movies", DefaultLogDirName) {
		t.Errorf("GetLogDir() = %q", got)
	}

	cfg.TempDir = "/scratch"
	cfg.LogDir = "/logs"
	if cfg.GetTempDir("/media/movies/A/a.mkv") != "/scratch" || cfg.GetLogDir() != "/logs" {
		t.Error("explicit directories should win")
	}
}

func TestWithOverrides(t *testing.T) {
	base := *NewConfig("/library")
	got := base.With(
		WithLibraryRoots("/other"),
		WithTempDir(""),
		WithLogDir("/logs"),
		WithFallbackMode(FallbackReencode),
		WithDryRun(true),
		WithVerbose(false),
		WithSkipVerify(true),
	)

	if got.LibraryRoots[0] != "/other" || got.LogDir != "/logs" || got.FallbackMode != FallbackReencode || !got.DryRun || !got.SkipVerify {
		t.Errorf("overrides not applied: %+v", got)
	}
	if got.TempDir != "" || got.Verbose {
		t.Errorf("empty overrides should be no-ops: %+v", got)
	}
	if base.LibraryRoots[0] != "/library" || base.DryRun {
		t.Error("With must not mutate the receiver")
	}
}

func TestUsageListsEnv(t *testing.T) {
	if u := Usage(); u == "" {
		t.Error("Usage() should describe environment variables")
	}
}
