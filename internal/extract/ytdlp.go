package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/grabtube/grabtube/internal/model"
)

// progressInterval is how often yt-dlp reports download progress.
const progressInterval = 500 * time.Millisecond

// YtdlpExtractor drives the yt-dlp binary. It is the primary strategy: widest
// site support and full adaptive-format metadata.
type YtdlpExtractor struct{}

func NewYtdlpExtractor() *YtdlpExtractor {
	return &YtdlpExtractor{}
}

func (e *YtdlpExtractor) Name() string {
	return "yt-dlp"
}

// rawInfo mirrors the subset of yt-dlp's single-JSON dump we consume.
type rawInfo struct {
	Title             string                  `json:"title"`
	Thumbnail         string                  `json:"thumbnail"`
	Uploader          string                  `json:"uploader"`
	Duration          float64                 `json:"duration"`
	ViewCount         int64                   `json:"view_count"`
	Formats           []rawFormat             `json:"formats"`
	Subtitles         map[string][]rawCaption `json:"subtitles"`
	AutomaticCaptions map[string][]rawCaption `json:"automatic_captions"`
}

type rawFormat struct {
	FormatID       string  `json:"format_id"`
	Ext            string  `json:"ext"`
	Vcodec         string  `json:"vcodec"`
	Acodec         string  `json:"acodec"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	FPS            float64 `json:"fps"`
	ABR            float64 `json:"abr"`
	ASR            float64 `json:"asr"`
	TBR            float64 `json:"tbr"`
	Filesize       int64   `json:"filesize"`
	FilesizeApprox int64   `json:"filesize_approx"`
	URL            string  `json:"url"`
}

type rawCaption struct {
	URL string `json:"url"`
	Ext string `json:"ext"`
}

func (e *YtdlpExtractor) Extract(ctx context.Context, url string) (*VideoMetadata, error) {
	dl := ytdlp.New().
		Quiet().
		NoWarnings().
		NoPlaylist().
		SkipDownload().
		DumpSingleJSON()

	result, err := dl.Run(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp metadata probe failed: %w", err)
	}

	return parseInfoJSON([]byte(result.Stdout))
}

// parseInfoJSON converts a yt-dlp single-JSON dump into VideoMetadata.
// Storyboard pseudo-formats and entries with no codec at all are dropped.
func parseInfoJSON(data []byte) (*VideoMetadata, error) {
	var info rawInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse yt-dlp output: %w", err)
	}

	meta := &VideoMetadata{
		Title:     info.Title,
		Thumbnail: info.Thumbnail,
		Uploader:  info.Uploader,
		Duration:  int(info.Duration),
		ViewCount: info.ViewCount,
	}

	for _, f := range info.Formats {
		if f.FormatID == "" || f.Ext == "mhtml" {
			continue
		}
		if (f.Vcodec == "" || f.Vcodec == model.CodecNone) &&
			(f.Acodec == "" || f.Acodec == model.CodecNone) {
			continue
		}

		size := f.Filesize
		if size == 0 {
			size = f.FilesizeApprox
		}

		meta.Streams = append(meta.Streams, model.StreamDescriptor{
			FormatID:     f.FormatID,
			Container:    f.Ext,
			VideoCodec:   f.Vcodec,
			AudioCodec:   f.Acodec,
			Width:        f.Width,
			Height:       f.Height,
			FrameRate:    f.FPS,
			AudioBitrate: f.ABR,
			SampleRate:   int(f.ASR),
			TotalBitrate: f.TBR,
			SizeBytes:    size,
			SourceURL:    f.URL,
		})
	}

	if len(meta.Streams) == 0 {
		return nil, ErrNoFormats
	}

	meta.Captions = append(meta.Captions, captionTracks(info.Subtitles, false)...)
	meta.Captions = append(meta.Captions, captionTracks(info.AutomaticCaptions, true)...)

	return meta, nil
}

func captionTracks(byLanguage map[string][]rawCaption, auto bool) []CaptionTrack {
	var tracks []CaptionTrack
	for language, variants := range byLanguage {
		for _, v := range variants {
			if v.URL == "" {
				continue
			}
			tracks = append(tracks, CaptionTrack{
				URL:      v.URL,
				Language: language,
				Format:   v.Ext,
				Auto:     auto,
			})
		}
	}
	return tracks
}

func (e *YtdlpExtractor) Fetch(ctx context.Context, url string, sel Selection, dest string, progress ProgressFunc) error {
	if sel.FormatID == "" {
		return ErrNoMatch
	}

	dl := ytdlp.New().
		Quiet().
		NoWarnings().
		NoPlaylist().
		ForceOverwrites().
		Format(sel.FormatID).
		Output(dest)

	if progress != nil {
		dl.ProgressFunc(progressInterval, func(update ytdlp.ProgressUpdate) {
			progress(int64(update.DownloadedBytes), int64(update.TotalBytes))
		})
	}

	if _, err := dl.Run(ctx, url); err != nil {
		return fmt.Errorf("yt-dlp download failed for format %s: %w", sel.FormatID, err)
	}
	return nil
}
