package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"

	"github.com/grabtube/grabtube/internal/model"
)

// NativeExtractor is the fallback strategy: a pure-Go YouTube client with no
// subprocess. Narrower site support than yt-dlp but immune to binary
// provisioning problems.
type NativeExtractor struct {
	client youtube.Client
}

func NewNativeExtractor(timeout time.Duration) *NativeExtractor {
	return &NativeExtractor{
		client: youtube.Client{
			HTTPClient: &http.Client{Timeout: timeout},
		},
	}
}

func (e *NativeExtractor) Name() string {
	return "native"
}

func (e *NativeExtractor) Extract(ctx context.Context, url string) (*VideoMetadata, error) {
	video, err := e.client.GetVideoContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("native metadata probe failed: %w", err)
	}

	meta := &VideoMetadata{
		Title:     video.Title,
		Uploader:  video.Author,
		Duration:  int(video.Duration.Seconds()),
		ViewCount: int64(video.Views),
		Thumbnail: bestThumbnail(video.Thumbnails),
		Streams:   descriptorsFromFormats(video.Formats),
	}

	if len(meta.Streams) == 0 {
		return nil, ErrNoFormats
	}

	for _, track := range video.CaptionTracks {
		if track.BaseURL == "" {
			continue
		}
		meta.Captions = append(meta.Captions, CaptionTrack{
			URL:      track.BaseURL,
			Language: track.LanguageCode,
			Format:   "xml",
			Auto:     track.Kind == "asr",
		})
	}

	return meta, nil
}

func bestThumbnail(thumbnails youtube.Thumbnails) string {
	var url string
	var bestWidth uint
	for _, t := range thumbnails {
		if t.URL != "" && t.Width >= bestWidth {
			url = t.URL
			bestWidth = t.Width
		}
	}
	return url
}

func descriptorsFromFormats(formats youtube.FormatList) []model.StreamDescriptor {
	var streams []model.StreamDescriptor
	for _, f := range formats {
		vcodec, acodec := codecsFromMime(f.MimeType)
		if vcodec == model.CodecNone && acodec == model.CodecNone {
			continue
		}

		bitrate := f.AverageBitrate
		if bitrate == 0 {
			bitrate = f.Bitrate
		}

		d := model.StreamDescriptor{
			FormatID:     strconv.Itoa(f.ItagNo),
			Container:    mimeToExt(f.MimeType),
			VideoCodec:   vcodec,
			AudioCodec:   acodec,
			Width:        f.Width,
			Height:       f.Height,
			FrameRate:    float64(f.FPS),
			TotalBitrate: float64(bitrate) / 1000,
			SizeBytes:    f.ContentLength,
			SourceURL:    f.URL,
		}
		if acodec != model.CodecNone {
			d.AudioBitrate = float64(bitrate) / 1000
			if asr, err := strconv.Atoi(f.AudioSampleRate); err == nil {
				d.SampleRate = asr
			}
		}
		streams = append(streams, d)
	}
	return streams
}

// codecsFromMime splits a MIME type like
// `video/mp4; codecs="avc1.640028, mp4a.40.2"` into video and audio codec
// strings, using "none" for a missing side.
func codecsFromMime(mime string) (vcodec, acodec string) {
	vcodec, acodec = model.CodecNone, model.CodecNone

	base := mime
	if i := strings.Index(base, ";"); i >= 0 {
		base = base[:i]
	}
	base = strings.TrimSpace(base)

	var codecs []string
	if i := strings.Index(mime, `codecs="`); i >= 0 {
		rest := mime[i+len(`codecs="`):]
		if j := strings.Index(rest, `"`); j >= 0 {
			for _, c := range strings.Split(rest[:j], ",") {
				codecs = append(codecs, strings.TrimSpace(c))
			}
		}
	}

	switch {
	case strings.HasPrefix(base, "audio/"):
		if len(codecs) > 0 {
			acodec = codecs[0]
		} else {
			acodec = "unknown"
		}
	case strings.HasPrefix(base, "video/"):
		if len(codecs) > 0 {
			vcodec = codecs[0]
		} else {
			vcodec = "unknown"
		}
		if len(codecs) > 1 {
			acodec = codecs[1]
		}
	}
	return vcodec, acodec
}

func mimeToExt(mime string) string {
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	parts := strings.Split(mime, "/")
	if len(parts) == 2 {
		switch parts[1] {
		case "3gpp":
			return "3gp"
		default:
			return parts[1]
		}
	}
	return "bin"
}

func (e *NativeExtractor) Fetch(ctx context.Context, url string, sel Selection, dest string, progress ProgressFunc) error {
	video, err := e.client.GetVideoContext(ctx, url)
	if err != nil {
		return fmt.Errorf("native metadata probe failed: %w", err)
	}

	format := pickFormat(video.Formats, sel)
	if format == nil {
		return ErrNoMatch
	}

	stream, total, err := e.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return fmt.Errorf("native stream open failed: %w", err)
	}
	defer stream.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	file, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	writer := io.Writer(file)
	if progress != nil {
		writer = io.MultiWriter(file, &progressWriter{total: total, progress: progress})
	}

	if _, err := io.Copy(writer, stream); err != nil {
		return fmt.Errorf("native download failed: %w", err)
	}
	return nil
}

// pickFormat resolves a selection against the native format list. An exact
// itag match wins; otherwise the closest format of the requested kind is
// chosen, never exceeding the requested height.
func pickFormat(formats youtube.FormatList, sel Selection) *youtube.Format {
	if itag, err := strconv.Atoi(sel.FormatID); err == nil {
		for i := range formats {
			if formats[i].ItagNo == itag {
				return &formats[i]
			}
		}
	}

	var best *youtube.Format
	for i := range formats {
		f := &formats[i]
		vcodec, acodec := codecsFromMime(f.MimeType)
		kind := model.StreamDescriptor{VideoCodec: vcodec, AudioCodec: acodec}.Kind()
		if kind != sel.Kind {
			continue
		}

		switch sel.Kind {
		case model.StreamAudioOnly:
			if best == nil || f.AverageBitrate > best.AverageBitrate {
				best = f
			}
		default:
			if sel.Height > 0 && f.Height > sel.Height {
				continue
			}
			if best == nil || f.Height > best.Height {
				best = f
			}
		}
	}
	return best
}

type progressWriter struct {
	total      int64
	downloaded int64
	progress   ProgressFunc
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.downloaded += int64(len(p))
	w.progress(w.downloaded, w.total)
	return len(p), nil
}
