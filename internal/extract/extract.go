// Package extract probes video URLs for stream metadata and retrieves
// selected streams to disk. Two strategies are provided: a yt-dlp subprocess
// (primary) and a native YouTube client (fallback), composed behind a
// memoizing chain so callers never deal with strategy choice.
package extract

import (
	"context"
	"errors"

	"github.com/grabtube/grabtube/internal/model"
)

// ErrNoFormats is returned when a URL resolves but exposes no usable streams.
var ErrNoFormats = errors.New("no usable formats found")

// ErrNoMatch is returned when no stream satisfies the requested selection.
var ErrNoMatch = errors.New("no format matches the requested selection")

// CaptionTrack points at a single downloadable caption payload.
type CaptionTrack struct {
	URL      string
	Language string
	Format   string
	Auto     bool
}

// VideoMetadata is the strategy-independent description of a video: display
// fields plus every stream the source exposes.
type VideoMetadata struct {
	Title     string
	Thumbnail string
	Uploader  string
	Duration  int
	ViewCount int64
	Streams   []model.StreamDescriptor
	Captions  []CaptionTrack
}

// Selection identifies the stream a retrieval should fetch. FormatID is
// authoritative when the strategy recognizes it; Kind and Height let a
// fallback strategy pick its own closest match when it does not.
type Selection struct {
	FormatID string
	Kind     model.StreamKind
	Height   int
}

// ProgressFunc receives byte counts during a fetch. total is zero when the
// source does not report a size.
type ProgressFunc func(downloaded, total int64)

// Extractor is one retrieval strategy.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, url string) (*VideoMetadata, error)
	Fetch(ctx context.Context, url string, sel Selection, dest string, progress ProgressFunc) error
}
