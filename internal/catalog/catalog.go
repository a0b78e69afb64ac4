// Package catalog classifies raw stream descriptors into ranked video-only,
// audio-only, and muxed groups, derives human-readable quality labels, and
// builds the one-click preset list. All ranking thresholds are policy
// constants with no authoritative source upstream; they are kept here so a
// deployment can tune them in one place.
package catalog

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/grabtube/grabtube/internal/model"
)

// Audio quality score bands. Bitrates at or above a band threshold are lifted
// into that band so 320/256/192 kbps streams always outrank lower tiers
// regardless of raw bitrate differences.
const (
	scoreBand320 = 10000
	scoreBand256 = 9000
	scoreBand192 = 8000

	bitrateTier320 = 320
	bitrateTier256 = 256
	bitrateTier192 = 192
)

// Container bonus applied when bitrate is unknown, so format alone still
// produces a deterministic order.
const (
	preferredExtScore = 500 // m4a, aac
	commonExtScore    = 400 // mp3, opus
)

// Sample-rate bands used to approximate a bitrate label when the extractor
// reports no bitrate. Heuristic, not a measurement.
const (
	sampleRateHigh = 44100
	sampleRateMid  = 32000

	approxBitrateHigh = 192
	approxBitrateMid  = 128
	approxBitrateLow  = 96
)

// InteractiveHeightFloor is the minimum height surfaced to the manual
// format-selection endpoint. Preset generation has no such floor; the
// asymmetry is deliberate upstream behavior and is preserved.
const InteractiveHeightFloor = 480

// fpsLabelThreshold: frame rates above this get an fps suffix in the label.
const fpsLabelThreshold = 30

type presetTier struct {
	Height int
	Label  string
	Value  string
}

var presetTiers = []presetTier{
	{2160, "4K (2160p)", "2160"},
	{1440, "2K (1440p)", "1440"},
	{1080, "Full HD (1080p)", "1080"},
	{720, "HD (720p)", "720"},
	{480, "SD (480p)", "480"},
	{360, "360p", "360"},
}

var audioPresets = []model.Preset{
	{Label: "Audio only (High Quality)", Value: "audio_high"},
	{Label: "Audio only (MP3)", Value: "mp3"},
}

// Classify partitions descriptors into video-only, audio-only and muxed
// groups, ranks each group, and derives labels and presets. Every input
// descriptor lands in exactly one group. An empty or nil input yields an
// empty catalog with only the always-present audio presets.
func Classify(descriptors []model.StreamDescriptor) model.FormatCatalog {
	var c model.FormatCatalog

	for _, d := range descriptors {
		switch d.Kind() {
		case model.StreamVideoOnly:
			c.VideoFormats = append(c.VideoFormats, d)
		case model.StreamAudioOnly:
			c.AudioFormats = append(c.AudioFormats, d)
		case model.StreamMuxed:
			c.CombinedFormats = append(c.CombinedFormats, d)
		}
	}

	sortByResolution(c.VideoFormats)
	sortByResolution(c.CombinedFormats)
	sort.SliceStable(c.AudioFormats, func(i, j int) bool {
		return AudioScore(c.AudioFormats[i]) > AudioScore(c.AudioFormats[j])
	})

	c.VideoOptions = videoOptions(c.VideoFormats)
	c.AudioOptions = audioOptions(c.AudioFormats)
	c.Presets = BuildPresets(c.VideoFormats)

	return c
}

func sortByResolution(formats []model.StreamDescriptor) {
	sort.SliceStable(formats, func(i, j int) bool {
		if formats[i].Height != formats[j].Height {
			return formats[i].Height > formats[j].Height
		}
		return formats[i].TotalBitrate > formats[j].TotalBitrate
	})
}

// AudioScore ranks an audio descriptor: known bitrates are banded so the
// 320/256/192 tiers dominate, unknown bitrates fall back to a container
// bonus.
func AudioScore(d model.StreamDescriptor) float64 {
	if d.AudioBitrate > 0 {
		switch {
		case d.AudioBitrate >= bitrateTier320:
			return scoreBand320 + d.AudioBitrate
		case d.AudioBitrate >= bitrateTier256:
			return scoreBand256 + d.AudioBitrate
		case d.AudioBitrate >= bitrateTier192:
			return scoreBand192 + d.AudioBitrate
		default:
			return d.AudioBitrate
		}
	}

	switch strings.ToLower(d.Container) {
	case "m4a", "aac":
		return preferredExtScore
	case "mp3", "opus":
		return commonExtScore
	}
	return 0
}

// VideoQualityLabel returns "{height}p", extended with an fps suffix for
// high-frame-rate streams.
func VideoQualityLabel(d model.StreamDescriptor) string {
	if d.Height == 0 {
		return ""
	}
	label := fmt.Sprintf("%dp", d.Height)
	if d.FrameRate > fpsLabelThreshold {
		label += fmt.Sprintf(" %dfps", int(math.Round(d.FrameRate)))
	}
	return label
}

// AudioQualityLabel returns "{bitrate}kbps {EXT}". When bitrate is unknown it
// derives an approximate tier from the sample rate.
func AudioQualityLabel(d model.StreamDescriptor) string {
	bitrate := d.AudioBitrate
	if bitrate == 0 && d.SampleRate > 0 {
		switch {
		case d.SampleRate >= sampleRateHigh:
			bitrate = approxBitrateHigh
		case d.SampleRate >= sampleRateMid:
			bitrate = approxBitrateMid
		default:
			bitrate = approxBitrateLow
		}
	}
	if bitrate == 0 {
		return fmt.Sprintf("Unknown %s", strings.ToUpper(d.Container))
	}
	return fmt.Sprintf("%dkbps %s", int(math.Round(bitrate)), strings.ToUpper(d.Container))
}

// SizeLabel formats a byte estimate for display.
func SizeLabel(sizeBytes int64) string {
	if sizeBytes <= 0 {
		return "Unknown size"
	}
	return fmt.Sprintf("%.2f MB", float64(sizeBytes)/(1024*1024))
}

func videoOptions(ranked []model.StreamDescriptor) []model.FormatOption {
	var options []model.FormatOption
	seen := make(map[string]bool)

	for _, d := range ranked {
		label := VideoQualityLabel(d)
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		options = append(options, model.FormatOption{
			FormatID:    d.FormatID,
			Ext:         d.Container,
			Label:       label,
			Height:      d.Height,
			Size:        SizeLabel(d.SizeBytes),
			DisplayText: fmt.Sprintf("%s (%s)", label, d.Container),
		})
	}
	return options
}

func audioOptions(ranked []model.StreamDescriptor) []model.FormatOption {
	var options []model.FormatOption
	seen := make(map[string]bool)

	for _, d := range ranked {
		label := AudioQualityLabel(d)
		if seen[label] {
			continue
		}
		seen[label] = true
		options = append(options, model.FormatOption{
			FormatID:    d.FormatID,
			Ext:         d.Container,
			Label:       label,
			Bitrate:     d.AudioBitrate,
			Size:        SizeLabel(d.SizeBytes),
			DisplayText: fmt.Sprintf("%s (%s)", label, d.Container),
		})
	}
	return options
}

// BuildPresets lists only the quality tiers actually satisfied by at least
// one video format, plus the always-present audio presets. Unlike the
// interactive list there is no height floor here.
func BuildPresets(videoFormats []model.StreamDescriptor) []model.Preset {
	var presets []model.Preset

	for _, tier := range presetTiers {
		for _, d := range videoFormats {
			if d.Height >= tier.Height {
				presets = append(presets, model.Preset{Label: tier.Label, Value: tier.Value})
				break
			}
		}
	}

	return append(presets, audioPresets...)
}

// InteractiveVideoFormats is the manual-selection view of the ranked video
// list: only formats at or above InteractiveHeightFloor are offered, with a
// display text that includes the size estimate when known. The preset path
// has no such floor; do not unify the two.
func InteractiveVideoFormats(c model.FormatCatalog) []model.FormatOption {
	var options []model.FormatOption

	for _, d := range c.VideoFormats {
		if d.Height < InteractiveHeightFloor {
			continue
		}
		label := VideoQualityLabel(d)
		size := SizeLabel(d.SizeBytes)
		display := fmt.Sprintf("%s (%s)", label, d.Container)
		if size != "Unknown size" {
			display += " - " + size
		}
		options = append(options, model.FormatOption{
			FormatID:    d.FormatID,
			Ext:         d.Container,
			Label:       label,
			Height:      d.Height,
			Size:        size,
			DisplayText: display,
		})
	}
	return options
}
