package ffmpeg

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/five82/dovetail/internal/util"
)

// Progress represents encoding progress information.
type Progress struct {
	CurrentFrame uint64
	Percent      float32
	Speed        float32
	FPS          float32
	ETA          time.Duration
	Bitrate      string
	ElapsedSecs  float64
}

// ProgressCallback is called with progress updates during encoding.
type ProgressCallback func(Progress)

var timeRegex = regexp.MustCompile(`time=(\d{2}:\d{2}:\d{2}\.?\d*)`)

// ProgressLineHandler returns a per-line hook that turns ffmpeg stats lines
// into Progress updates for a source of the given duration in seconds.
// Lines without "frame=" are ignored.
func ProgressLineHandler(duration float64, callback ProgressCallback) func(string) {
	return func(line string) {
		if callback == nil || !strings.Contains(line, "frame=") {
			return
		}
		if p := parseProgressLine(line, duration); p != nil {
			callback(*p)
		}
	}
}

// parseProgressLine extracts progress information from an FFmpeg progress line.
func parseProgressLine(line string, duration float64) *Progress {
	// Extract elapsed time
	var elapsedSecs float64
	if matches := timeRegex.FindStringSubmatch(line); len(matches) >= 2 {
		if secs, ok := util.ParseFFmpegTime(matches[1]); ok {
			elapsedSecs = secs
		}
	}

	var frame uint64
	if v, ok := field(line, "frame="); ok {
		if f, err := strconv.ParseUint(v, 10, 64); err == nil {
			frame = f
		}
	}

	var fps float32
	if v, ok := field(line, "fps="); ok {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			fps = float32(f)
		}
	}

	bitrate, _ := field(line, "bitrate=")

	var speed float32
	if v, ok := field(line, "speed="); ok {
		if s, err := strconv.ParseFloat(strings.TrimSuffix(v, "x"), 32); err == nil {
			speed = float32(s)
		}
	}

	var percent float32
	if duration > 0 {
		percent = float32((elapsedSecs / duration) * 100)
		if percent > 100 {
			percent = 100
		}
	}

	var eta time.Duration
	if speed > 0 && duration > 0 {
		remaining := duration - elapsedSecs
		eta = time.Duration(remaining/float64(speed)) * time.Second
	}

	return &Progress{
		CurrentFrame: frame,
		Percent:      percent,
		Speed:        speed,
		FPS:          fps,
		ETA:          eta,
		Bitrate:      bitrate,
		ElapsedSecs:  elapsedSecs,
	}
}

// field returns the token after key, tolerating ffmpeg's padding spaces
// ("frame=  240").
func field(line, key string) (string, bool) {
	idx := strings.Index(line, key)
	if idx < 0 {
		return "", false
	}
	rest := strings.TrimLeft(line[idx+len(key):], " ")
	if end := strings.IndexAny(rest, " \t\r\n"); end >= 0 {
		rest = rest[:end]
	}
	return rest, rest != ""
}
