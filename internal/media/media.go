// Package media holds the read-only library snapshot types and the
// Dolby Vision classification rules.
package media

// StreamType identifies the kind of an elementary stream inside a container.
type StreamType string

const (
	StreamVideo      StreamType = "video"
	StreamAudio      StreamType = "audio"
	StreamSubtitle   StreamType = "subtitle"
	StreamAttachment StreamType = "attachment"
	StreamData       StreamType = "data"
)

// ContainerMatroska is the only container dovetail rewrites.
const ContainerMatroska = "mkv"

// DoViMetadata is the Dolby Vision configuration record of a video stream.
// The optional fields are nil when the probe did not report them.
type DoViMetadata struct {
	Profile           int
	Level             int
	BLCompatibilityID *int
	BLPresentFlag     *int
	ELPresentFlag     *int
	RPUPresentFlag    *int
}

// StreamDescriptor describes one stream of a MediaSource.
type StreamDescriptor struct {
	Index int
	Type  StreamType
	Codec string
	// AttachedPic marks a still image (cover art) that ffprobe lists as a
	// video stream. It is not a video track.
	AttachedPic bool
	DoVi        *DoViMetadata
}

// IsVideoTrack reports whether the stream is real video rather than an
// attached picture.
func (d StreamDescriptor) IsVideoTrack() bool {
	return d.Type == StreamVideo && !d.AttachedPic
}

// MediaSource is one physical file backing a MediaItem.
type MediaSource struct {
	Path      string
	Container string
	Size      int64
	// Duration in seconds, 0 when unknown.
	Duration float64
	Streams  []StreamDescriptor
}

// MediaItem is a catalog entry with its backing files.
type MediaItem struct {
	ID        string
	Name      string
	Container string
	Sources   []MediaSource
}

// VideoStreams returns the video tracks of the source in index order.
// Attached pictures are left out.
func (s MediaSource) VideoStreams() []StreamDescriptor {
	var out []StreamDescriptor
	for _, st := range s.Streams {
		if st.IsVideoTrack() {
			out = append(out, st)
		}
	}
	return out
}

// HasVideo reports whether the source carries at least one video stream.
func (s MediaSource) HasVideo() bool {
	return len(s.VideoStreams()) > 0
}

// DoVi returns the first Dolby Vision record found on a video stream.
func (s MediaSource) DoVi() *DoViMetadata {
	for _, st := range s.Streams {
		if st.IsVideoTrack() && st.DoVi != nil {
			return st.DoVi
		}
	}
	return nil
}

// IntPtr is a convenience for building optional metadata fields.
func IntPtr(v int) *int {
	return &v
}
