// Package config provides configuration types and defaults for dovetail.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"

	dterrors "github.com/five82/dovetail/internal/errors"
)

// Default constants
const (
	// DefaultDoviMode is the dovi_tool conversion mode (2 = profile 8.1).
	DefaultDoviMode = 2

	// MaxDoviMode is the highest mode dovi_tool accepts.
	MaxDoviMode = 5

	// DefaultReencodeCRF is the x265 CRF for the re-encode fallback.
	DefaultReencodeCRF = 18

	// MaxCRF is the maximum valid x265 CRF value.
	MaxCRF = 51

	// DefaultReencodePreset is the x265 preset for the re-encode fallback.
	DefaultReencodePreset = "medium"

	// DefaultTerminateGrace is the SIGTERM to SIGKILL delay on cancellation.
	DefaultTerminateGrace = 5 * time.Second

	// DefaultExcerptLines is the number of diagnostic lines kept per stage.
	DefaultExcerptLines = 20

	// DefaultLogDirName is the log directory created under the first library
	// root when no log dir is set.
	DefaultLogDirName = ".dovetail-logs"
)

// FallbackMode selects what happens to profile 8 sources that cannot be
// converted in place.
type FallbackMode string

const (
	// FallbackStrip removes the DoVi layer and keeps the HDR10 base layer.
	FallbackStrip FallbackMode = "strip"
	// FallbackReencode re-encodes the video to HDR10 with libx265.
	FallbackReencode FallbackMode = "reencode"
)

// ParseFallbackMode parses a string into a FallbackMode.
func ParseFallbackMode(s string) (FallbackMode, error) {
	switch strings.ToLower(s) {
	case "strip":
		return FallbackStrip, nil
	case "reencode":
		return FallbackReencode, nil
	default:
		return "", fmt.Errorf("%w: '%s', valid options: strip, reencode", ErrInvalidFallbackMode, s)
	}
}

// String returns the string representation of the mode.
func (m FallbackMode) String() string {
	return string(m)
}

// Config holds all configuration for a dovetail run. It is built once, then
// passed by value.
type Config struct {
	// Tool paths
	FFmpegPath   string `yaml:"ffmpeg_path" env:"DOVETAIL_FFMPEG" env-default:"ffmpeg" validate:"required"`
	FFprobePath  string `yaml:"ffprobe_path" env:"DOVETAIL_FFPROBE" env-default:"ffprobe" validate:"required"`
	DoviToolPath string `yaml:"dovi_tool_path" env:"DOVETAIL_DOVI_TOOL" env-default:"dovi_tool" validate:"required"`
	MkvmergePath string `yaml:"mkvmerge_path" env:"DOVETAIL_MKVMERGE" env-default:"mkvmerge" validate:"required"`

	// Scope and directories
	LibraryRoots []string `yaml:"library_roots" env:"DOVETAIL_LIBRARY_ROOTS" env-separator:"," validate:"required,min=1,dive,required"`
	TempDir      string   `yaml:"temp_dir" env:"DOVETAIL_TEMP_DIR"` // Optional, defaults to the source's directory
	LogDir       string   `yaml:"log_dir" env:"DOVETAIL_LOG_DIR"`   // Optional, defaults under the first root

	// Conversion
	DoviMode       int          `yaml:"dovi_mode" env:"DOVETAIL_DOVI_MODE" env-default:"2" validate:"min=0,max=5"`
	FallbackMode   FallbackMode `yaml:"fallback_mode" env:"DOVETAIL_FALLBACK_MODE" env-default:"strip" validate:"oneof=strip reencode"`
	ReencodeCRF    int          `yaml:"reencode_crf" env:"DOVETAIL_REENCODE_CRF" env-default:"18" validate:"min=0,max=51"`
	ReencodePreset string       `yaml:"reencode_preset" env:"DOVETAIL_REENCODE_PRESET" env-default:"medium" validate:"oneof=ultrafast superfast veryfast faster fast medium slow slower veryslow placebo"`

	// Library server notification (optional)
	RescanURL   string `yaml:"rescan_url" env:"DOVETAIL_RESCAN_URL" validate:"omitempty,url"`
	RescanToken string `yaml:"rescan_token" env:"DOVETAIL_RESCAN_TOKEN"`

	// Run flags
	DryRun     bool `yaml:"dry_run" env:"DOVETAIL_DRY_RUN"`
	Verbose    bool `yaml:"verbose" env:"DOVETAIL_VERBOSE"`
	NoLog      bool `yaml:"no_log" env:"DOVETAIL_NO_LOG"`
	SkipVerify bool `yaml:"skip_verify" env:"DOVETAIL_SKIP_VERIFY"` // Commit outputs without probing them first

	// Tuning
	TerminateGrace time.Duration `yaml:"terminate_grace" env:"DOVETAIL_TERMINATE_GRACE" env-default:"5s"`
	ExcerptLines   int           `yaml:"excerpt_lines" env:"DOVETAIL_EXCERPT_LINES" env-default:"20" validate:"min=1,max=1000"`
}

// NewConfig creates a new Config with default values.
func NewConfig(roots ...string) *Config {
	return &Config{
		FFmpegPath:     "ffmpeg",
		FFprobePath:    "ffprobe",
		DoviToolPath:   "dovi_tool",
		MkvmergePath:   "mkvmerge",
		LibraryRoots:   roots,
		DoviMode:       DefaultDoviMode,
		FallbackMode:   FallbackStrip,
		ReencodeCRF:    DefaultReencodeCRF,
		ReencodePreset: DefaultReencodePreset,
		TerminateGrace: DefaultTerminateGrace,
		ExcerptLines:   DefaultExcerptLines,
	}
}

// Load reads configuration from the YAML file at path, then applies
// DOVETAIL_* environment overrides and defaults. An empty path reads the
// environment only. The result is validated; any problem is a KindConfig
// error.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read is Load without validation, for callers that apply overrides first.
func Read(path string) (*Config, error) {
	cfg := &Config{}
	var err error
	if path == "" {
		err = cleanenv.ReadEnv(cfg)
	} else {
		err = cleanenv.ReadConfig(path, cfg)
	}
	if err != nil {
		return nil, dterrors.NewConfigError("failed to load configuration", err)
	}
	return cfg, nil
}

// Usage describes every environment variable Load understands.
func Usage() string {
	desc, err := cleanenv.GetDescription(&Config{}, nil)
	if err != nil {
		return ""
	}
	return desc
}

var validate = validator.New()

// Validate checks the configuration for errors. Failures wrap one of the
// sentinel errors inside a KindConfig CoreError.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) || len(verrs) == 0 {
			return dterrors.NewConfigError("invalid configuration", err)
		}
		fe := verrs[0]
		return dterrors.NewConfigError(
			fmt.Sprintf("%s failed %q (got %v)", fe.Field(), fe.Tag(), fe.Value()),
			sentinelFor(fe.StructField()),
		)
	}
	if c.TerminateGrace <= 0 {
		return dterrors.NewConfigError(fmt.Sprintf("terminate_grace is %v", c.TerminateGrace), ErrInvalidGrace)
	}
	return nil
}

func sentinelFor(field string) error {
	// Element errors from dive are reported as "LibraryRoots[1]".
	field, _, _ = strings.Cut(field, "[")
	switch field {
	case "FFmpegPath", "FFprobePath", "DoviToolPath", "MkvmergePath":
		return ErrMissingTool
	case "LibraryRoots":
		return ErrNoLibraryRoots
	case "DoviMode":
		return ErrInvalidDoviMode
	case "FallbackMode":
		return ErrInvalidFallbackMode
	case "ReencodeCRF":
		return ErrInvalidCRF
	default:
		return nil
	}
}

// GetTempDir returns the scratch directory for a source, falling back to the
// source's own directory so the final rename stays on one filesystem.
func (c Config) GetTempDir(source string) string {
	if c.TempDir != "" {
		return c.TempDir
	}
	return filepath.Dir(source)
}

// GetLogDir returns the stage log directory.
func (c Config) GetLogDir() string {
	if c.LogDir != "" {
		return c.LogDir
	}
	if len(c.LibraryRoots) > 0 {
		return filepath.Join(c.LibraryRoots[0], DefaultLogDirName)
	}
	return DefaultLogDirName
}

// Override mutates a Config before it is frozen.
type Override func(*Config)

// With returns a copy of c with overrides applied.
func (c Config) With(overrides ...Override) Config {
	c.LibraryRoots = append([]string(nil), c.LibraryRoots...)
	for _, o := range overrides {
		o(&c)
	}
	return c
}

// WithLibraryRoots replaces the library roots when roots is non-empty.
func WithLibraryRoots(roots ...string) Override {
	return func(c *Config) {
		if len(roots) > 0 {
			c.LibraryRoots = roots
		}
	}
}

// WithTempDir sets the scratch directory when dir is non-empty.
func WithTempDir(dir string) Override {
	return func(c *Config) {
		if dir != "" {
			c.TempDir = dir
		}
	}
}

// WithLogDir sets the log directory when dir is non-empty.
func WithLogDir(dir string) Override {
	return func(c *Config) {
		if dir != "" {
			c.LogDir = dir
		}
	}
}

// WithFallbackMode sets the fallback mode.
func WithFallbackMode(m FallbackMode) Override {
	return func(c *Config) { c.FallbackMode = m }
}

// WithDryRun enables dry-run when on is true.
func WithDryRun(on bool) Override {
	return func(c *Config) { c.DryRun = c.DryRun || on }
}

// WithVerbose enables debug logging when on is true.
func WithVerbose(on bool) Override {
	return func(c *Config) { c.Verbose = c.Verbose || on }
}

// WithNoLog disables the run log file when on is true.
func WithNoLog(on bool) Override {
	return func(c *Config) { c.NoLog = c.NoLog || on }
}

// WithSkipVerify disables output verification when on is true.
func WithSkipVerify(on bool) Override {
	return func(c *Config) { c.SkipVerify = c.SkipVerify || on }
}
