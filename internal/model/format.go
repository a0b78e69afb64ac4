package model

import "fmt"

// CodecNone marks an absent video or audio codec on a stream descriptor,
// mirroring the extractor's "none" convention.
const CodecNone = "none"

// StreamKind classifies a stream descriptor by which codecs it carries.
type StreamKind string

const (
	// StreamVideoOnly has a video codec and no audio codec
	StreamVideoOnly StreamKind = "video_only"

	// StreamAudioOnly has an audio codec and no video codec
	StreamAudioOnly StreamKind = "audio_only"

	// StreamMuxed carries both audio and video in one container
	StreamMuxed StreamKind = "muxed"
)

// StreamDescriptor is one retrievable encoding of a source video. Descriptors
// are created fresh on every catalog fetch and never persisted; SourceURL is
// transient and retrieval-only.
type StreamDescriptor struct {
	FormatID     string  `json:"format_id"`
	Container    string  `json:"ext"`
	VideoCodec   string  `json:"vcodec"`
	AudioCodec   string  `json:"acodec"`
	Width        int     `json:"width,omitempty"`
	Height       int     `json:"height,omitempty"`
	FrameRate    float64 `json:"fps,omitempty"`
	AudioBitrate float64 `json:"abr,omitempty"`  // kbps
	SampleRate   int     `json:"asr,omitempty"`  // Hz
	TotalBitrate float64 `json:"tbr,omitempty"`  // kbps
	SizeBytes    int64   `json:"filesize,omitempty"`
	SourceURL    string  `json:"-"`
}

// Kind reports whether the descriptor is video-only, audio-only, or muxed.
// Exactly one of the three holds for any descriptor.
func (d StreamDescriptor) Kind() StreamKind {
	hasVideo := d.VideoCodec != "" && d.VideoCodec != CodecNone
	hasAudio := d.AudioCodec != "" && d.AudioCodec != CodecNone
	switch {
	case hasVideo && hasAudio:
		return StreamMuxed
	case hasVideo:
		return StreamVideoOnly
	default:
		return StreamAudioOnly
	}
}

// Resolution returns "WxH" or an empty string when dimensions are unknown.
func (d StreamDescriptor) Resolution() string {
	if d.Width == 0 || d.Height == 0 {
		return ""
	}
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// FormatOption is a deduplicated, UI-facing view of one classified format.
type FormatOption struct {
	FormatID    string  `json:"format_id"`
	Ext         string  `json:"ext"`
	Label       string  `json:"label"`
	Height      int     `json:"height,omitempty"`
	Bitrate     float64 `json:"abr,omitempty"`
	Size        string  `json:"size"`
	DisplayText string  `json:"display_text"`
}

// Preset is a one-click quality shortcut mapping to a tier or format class.
type Preset struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// FormatCatalog is the classified, ranked view of a descriptor list for one
// video. Every input descriptor appears in exactly one of the three groups.
type FormatCatalog struct {
	VideoFormats    []StreamDescriptor `json:"video_formats"`
	AudioFormats    []StreamDescriptor `json:"audio_formats"`
	CombinedFormats []StreamDescriptor `json:"combined_formats"`
	VideoOptions    []FormatOption     `json:"video_quality_options"`
	AudioOptions    []FormatOption     `json:"audio_quality_options"`
	Presets         []Preset           `json:"preset_formats"`
}

// Empty reports whether classification produced no usable formats at all.
func (c FormatCatalog) Empty() bool {
	return len(c.VideoFormats) == 0 && len(c.AudioFormats) == 0 && len(c.CombinedFormats) == 0
}
