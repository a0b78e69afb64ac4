package server

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/grabtube/grabtube/internal/catalog"
	"github.com/grabtube/grabtube/internal/download"
	"github.com/grabtube/grabtube/internal/extract"
	"github.com/grabtube/grabtube/internal/model"
)

// Audio preset values. Both map to the best available audio stream; the
// artifact container is m4a either way.
const (
	presetAudioHigh = "audio_high"
	presetAudioMP3  = "mp3"
)

// resolveRequest turns an API download request into an engine request.
// Presets are resolved against the classified catalog; explicit format IDs
// are enriched with kind and height so fallback strategies can re-select.
func resolveRequest(meta *extract.VideoMetadata, req downloadRequest) (download.Request, error) {
	ext, err := outputExt(req.OutputExt)
	if err != nil {
		return download.Request{}, err
	}

	var engineReq download.Request
	if req.Preset != "" {
		engineReq, err = resolvePreset(meta, req)
	} else {
		engineReq, err = resolveExplicit(meta, req)
	}
	if err != nil {
		return download.Request{}, err
	}
	engineReq.OutputExt = ext
	return engineReq, nil
}

// outputExt validates the requested merge container. Empty defers to the
// engine default.
func outputExt(requested string) (string, error) {
	if requested == "" {
		return "", nil
	}
	ext := strings.ToLower(strings.TrimPrefix(requested, "."))
	if ext == "" {
		return "", fmt.Errorf("invalid output extension: %q", requested)
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return "", fmt.Errorf("invalid output extension: %q", requested)
		}
	}
	return ext, nil
}

func resolveExplicit(meta *extract.VideoMetadata, req downloadRequest) (download.Request, error) {
	intent := model.Intent(req.DownloadType)
	if !intent.Valid() {
		return download.Request{}, fmt.Errorf("invalid download type: %q", req.DownloadType)
	}

	engineReq := download.Request{URL: req.URL, Intent: intent}

	if intent.NeedsVideo() {
		if req.VideoFormatID == "" {
			return download.Request{}, fmt.Errorf("video format is required")
		}
		engineReq.Video = selectionFor(meta, req.VideoFormatID, model.StreamVideoOnly)
	}
	if intent.NeedsAudio() {
		if req.AudioFormatID == "" {
			return download.Request{}, fmt.Errorf("audio format is required")
		}
		engineReq.Audio = selectionFor(meta, req.AudioFormatID, model.StreamAudioOnly)
	}

	return engineReq, nil
}

func resolvePreset(meta *extract.VideoMetadata, req downloadRequest) (download.Request, error) {
	cat := catalog.Classify(meta.Streams)

	if req.Preset == presetAudioHigh || req.Preset == presetAudioMP3 {
		if len(cat.AudioFormats) == 0 {
			return download.Request{}, fmt.Errorf("no audio formats available")
		}
		return download.Request{
			URL:    req.URL,
			Intent: model.IntentAudioOnly,
			Audio:  selectionFromDescriptor(cat.AudioFormats[0]),
		}, nil
	}

	tier, err := strconv.Atoi(req.Preset)
	if err != nil || tier <= 0 {
		return download.Request{}, fmt.Errorf("unknown preset: %q", req.Preset)
	}

	video, ok := bestVideoForTier(cat.VideoFormats, tier)
	if ok {
		if len(cat.AudioFormats) > 0 {
			return download.Request{
				URL:    req.URL,
				Intent: model.IntentCombined,
				Video:  selectionFromDescriptor(video),
				Audio:  selectionFromDescriptor(cat.AudioFormats[0]),
			}, nil
		}
		// No separate audio track to merge; fall through to a muxed stream.
	}

	if muxed, ok := bestVideoForTier(cat.CombinedFormats, tier); ok {
		return download.Request{
			URL:    req.URL,
			Intent: model.IntentVideoOnly,
			Video:  selectionFromDescriptor(muxed),
		}, nil
	}

	return download.Request{}, fmt.Errorf("no video formats available for preset %q", req.Preset)
}

// bestVideoForTier returns the highest-quality format at or below the tier
// height, or the lowest-quality one when everything exceeds the tier. The
// input is already ranked best-first.
func bestVideoForTier(ranked []model.StreamDescriptor, tier int) (model.StreamDescriptor, bool) {
	if len(ranked) == 0 {
		return model.StreamDescriptor{}, false
	}
	for _, d := range ranked {
		if d.Height <= tier {
			return d, true
		}
	}
	return ranked[len(ranked)-1], true
}

func selectionFor(meta *extract.VideoMetadata, formatID string, fallbackKind model.StreamKind) extract.Selection {
	for _, d := range meta.Streams {
		if d.FormatID == formatID {
			return selectionFromDescriptor(d)
		}
	}
	return extract.Selection{FormatID: formatID, Kind: fallbackKind}
}

func selectionFromDescriptor(d model.StreamDescriptor) extract.Selection {
	return extract.Selection{
		FormatID: d.FormatID,
		Kind:     d.Kind(),
		Height:   d.Height,
	}
}
