package ffmpeg

import "strconv"

// ExtractArgs copies the first video stream of src to stdout as an Annex B
// HEVC elementary stream.
func ExtractArgs(src string) []string {
	return []string{
		"-nostdin",
		"-loglevel", "error",
		"-i", src,
		"-map", "0:v:0",
		"-c:v", "copy",
		"-bsf:v", "hevc_mp4toannexb",
		"-f", "hevc",
		"-",
	}
}

// ReencodeArgs re-encodes the first video stream of src to HDR10 with
// libx265 and copies every other stream into out. Stats stay on so stderr
// carries progress lines.
func ReencodeArgs(src, out, preset string, crf int) []string {
	return []string{
		"-nostdin",
		"-y",
		"-hide_banner",
		"-i", src,
		"-map", "0",
		"-c", "copy",
		"-c:v:0", "libx265",
		"-preset", preset,
		"-crf", strconv.Itoa(crf),
		"-pix_fmt", "yuv420p10le",
		"-x265-params", HDR10Params(),
		"-dolbyvision", "0",
		out,
	}
}
