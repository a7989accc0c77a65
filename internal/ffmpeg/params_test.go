package ffmpeg

import (
	"strings"
	"testing"
	"time"
)

func TestX265ParamsBuilder(t *testing.T) {
	tests := []struct {
		name     string
		build    func() string
		contains []string
	}{
		{
			name: "hdr10 signalling",
			build: func() string {
				return NewX265ParamsBuilder().WithHDR10Signalling().Build()
			},
			contains: []string{"hdr-opt=1", "repeat-headers=1", "colorprim=bt2020", "transfer=smpte2084", "colormatrix=bt2020nc"},
		},
		{
			name: "light levels",
			build: func() string {
				return NewX265ParamsBuilder().WithMaxCLL(1000, 400).WithMasterDisplay("G(1,2)").Build()
			},
			contains: []string{"max-cll=1000,400", "master-display=G(1,2)"},
		},
		{
			name: "custom params",
			build: func() string {
				return NewX265ParamsBuilder().AddParam("aq-mode", "3").Build()
			},
			contains: []string{"aq-mode=3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.build()
			for _, want := range tt.contains {
				if !strings.Contains(result, want) {
					t.Errorf("Build() = %q, want to contain %q", result, want)
				}
			}
		})
	}
}

func TestX265ParamsBuilderEmpty(t *testing.T) {
	if got := NewX265ParamsBuilder().Build(); got != "" {
		t.Errorf("Build() on empty builder = %q, want empty", got)
	}
}

func TestHDR10ParamsAreFixed(t *testing.T) {
	a, b := HDR10Params(), HDR10Params()
	if a != b {
		t.Error("HDR10Params() should be deterministic")
	}
	if strings.Contains(a, "::") || strings.HasSuffix(a, ":") {
		t.Errorf("malformed params %q", a)
	}
	if !strings.Contains(a, "master-display="+P3D65MasterDisplay) {
		t.Errorf("params %q missing master display", a)
	}
}

func TestExtractArgs(t *testing.T) {
	got := strings.Join(ExtractArgs("/lib/a b.mkv"), " ")
	want := "-nostdin -loglevel error -i /lib/a b.mkv -map 0:v:0 -c:v copy -bsf:v hevc_mp4toannexb -f hevc -"
	if got != want {
		t.Errorf("ExtractArgs() = %q, want %q", got, want)
	}
}

func TestReencodeArgs(t *testing.T) {
	args := ReencodeArgs("/lib/a.mkv", "/tmp/a.mkv", "slow", 18)
	joined := strings.Join(args, " ")
	for _, want := range []string{"-i /lib/a.mkv", "-map 0", "-c copy", "-c:v:0 libx265", "-preset slow", "-crf 18", "-pix_fmt yuv420p10le", "-dolbyvision 0"} {
		if !strings.Contains(joined, want) {
			t.Errorf("ReencodeArgs() = %q, missing %q", joined, want)
		}
	}
	if args[len(args)-1] != "/tmp/a.mkv" {
		t.Errorf("output should be the last argument, got %q", args[len(args)-1])
	}
}

func TestParseProgressLine(t *testing.T) {
	line := "frame=  240 fps= 48 q=28.0 size=    1024kB time=00:00:10.00 bitrate= 838.9kbits/s speed=2.00x"
	p := parseProgressLine(line, 100)
	if p.CurrentFrame != 240 {
		t.Errorf("CurrentFrame = %d, want 240", p.CurrentFrame)
	}
	if p.FPS != 48 {
		t.Errorf("FPS = %v, want 48", p.FPS)
	}
	if p.ElapsedSecs != 10 {
		t.Errorf("ElapsedSecs = %v, want 10", p.ElapsedSecs)
	}
	if p.Percent != 10 {
		t.Errorf("Percent = %v, want 10", p.Percent)
	}
	if p.Speed != 2 {
		t.Errorf("Speed = %v, want 2", p.Speed)
	}
	if p.Bitrate != "838.9kbits/s" {
		t.Errorf("Bitrate = %q", p.Bitrate)
	}
	if p.ETA != 45*time.Second {
		t.Errorf("ETA = %v, want 45s", p.ETA)
	}
}

func TestProgressLineHandler(t *testing.T) {
	var got []Progress
	h := ProgressLineHandler(4, func(p Progress) { got = append(got, p) })
	h("Input #0, matroska,webm, from 'a.mkv':")
	h("frame=24 fps=24 q=28.0 size=1kB time=00:00:02.00 bitrate=1.0kbits/s speed=1x")
	h("frame=96 fps=24 q=28.0 size=4kB time=00:00:08.00 bitrate=1.0kbits/s speed=1x")

	if len(got) != 2 {
		t.Fatalf("got %d updates, want 2", len(got))
	}
	if got[0].Percent != 50 || got[1].Percent != 100 {
		t.Errorf("percents = %v, %v; want 50 and clamped 100", got[0].Percent, got[1].Percent)
	}

	// A nil callback is a no-op.
	ProgressLineHandler(4, nil)("frame=1 time=00:00:01.00")
}
