package extract

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kkdai/youtube/v2"

	"github.com/grabtube/grabtube/internal/model"
)

const sampleInfoJSON = `{
	"title": "Test Video",
	"thumbnail": "https://example.com/thumb.jpg",
	"uploader": "Channel",
	"duration": 123.4,
	"view_count": 4242,
	"formats": [
		{"format_id": "sb0", "ext": "mhtml"},
		{"format_id": "x", "ext": "mp4", "vcodec": "none", "acodec": "none"},
		{"format_id": "137", "ext": "mp4", "vcodec": "avc1.640028", "acodec": "none",
		 "width": 1920, "height": 1080, "fps": 30, "tbr": 4500, "filesize": 1000},
		{"format_id": "140", "ext": "m4a", "vcodec": "none", "acodec": "mp4a.40.2",
		 "abr": 128, "asr": 44100, "filesize_approx": 500},
		{"format_id": "22", "ext": "mp4", "vcodec": "avc1.64001F", "acodec": "mp4a.40.2",
		 "width": 1280, "height": 720}
	],
	"subtitles": {"en": [{"url": "https://example.com/en.vtt", "ext": "vtt"}]},
	"automatic_captions": {"de": [{"url": "https://example.com/de.vtt", "ext": "vtt"}]}
}`

func TestParseInfoJSON(t *testing.T) {
	meta, err := parseInfoJSON([]byte(sampleInfoJSON))
	if err != nil {
		t.Fatalf("parseInfoJSON failed: %v", err)
	}

	if meta.Title != "Test Video" || meta.Uploader != "Channel" {
		t.Errorf("Unexpected display fields: %+v", meta)
	}
	if meta.Duration != 123 {
		t.Errorf("Expected duration 123, got %d", meta.Duration)
	}
	if meta.ViewCount != 4242 {
		t.Errorf("Expected view count 4242, got %d", meta.ViewCount)
	}

	if len(meta.Streams) != 3 {
		t.Fatalf("Expected 3 usable streams (storyboard and codec-less dropped), got %d", len(meta.Streams))
	}

	byID := make(map[string]model.StreamDescriptor)
	for _, s := range meta.Streams {
		byID[s.FormatID] = s
	}
	if byID["137"].Kind() != model.StreamVideoOnly {
		t.Errorf("Expected 137 video-only, got %s", byID["137"].Kind())
	}
	if byID["140"].Kind() != model.StreamAudioOnly {
		t.Errorf("Expected 140 audio-only, got %s", byID["140"].Kind())
	}
	if byID["140"].SizeBytes != 500 {
		t.Errorf("Expected approx filesize fallback, got %d", byID["140"].SizeBytes)
	}
	if byID["22"].Kind() != model.StreamMuxed {
		t.Errorf("Expected 22 muxed, got %s", byID["22"].Kind())
	}

	var manual, auto int
	for _, c := range meta.Captions {
		if c.Auto {
			auto++
		} else {
			manual++
		}
	}
	if manual != 1 || auto != 1 {
		t.Errorf("Expected 1 manual and 1 auto caption, got %d/%d", manual, auto)
	}
}

func TestParseInfoJSONNoFormats(t *testing.T) {
	_, err := parseInfoJSON([]byte(`{"title": "Empty", "formats": []}`))
	if !errors.Is(err, ErrNoFormats) {
		t.Errorf("Expected ErrNoFormats, got %v", err)
	}
}

func TestParseInfoJSONInvalid(t *testing.T) {
	if _, err := parseInfoJSON([]byte("not json")); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

func TestCodecsFromMime(t *testing.T) {
	tests := []struct {
		mime         string
		wantV, wantA string
	}{
		{`video/mp4; codecs="avc1.640028, mp4a.40.2"`, "avc1.640028", "mp4a.40.2"},
		{`video/webm; codecs="vp9"`, "vp9", model.CodecNone},
		{`audio/webm; codecs="opus"`, model.CodecNone, "opus"},
		{`audio/mp4`, model.CodecNone, "unknown"},
		{`application/octet-stream`, model.CodecNone, model.CodecNone},
	}

	for _, tt := range tests {
		v, a := codecsFromMime(tt.mime)
		if v != tt.wantV || a != tt.wantA {
			t.Errorf("codecsFromMime(%q) = (%q, %q), want (%q, %q)", tt.mime, v, a, tt.wantV, tt.wantA)
		}
	}
}

func TestMimeToExt(t *testing.T) {
	tests := []struct {
		mime string
		want string
	}{
		{`video/mp4; codecs="avc1"`, "mp4"},
		{"audio/webm", "webm"},
		{"video/3gpp", "3gp"},
		{"garbage", "bin"},
	}
	for _, tt := range tests {
		if got := mimeToExt(tt.mime); got != tt.want {
			t.Errorf("mimeToExt(%q) = %q, want %q", tt.mime, got, tt.want)
		}
	}
}

func TestDescriptorsFromFormats(t *testing.T) {
	formats := youtube.FormatList{
		{
			ItagNo:          137,
			MimeType:        `video/mp4; codecs="avc1.640028"`,
			Width:           1920,
			Height:          1080,
			FPS:             30,
			Bitrate:         4500000,
			ContentLength:   1000,
		},
		{
			ItagNo:          140,
			MimeType:        `audio/mp4; codecs="mp4a.40.2"`,
			AverageBitrate:  128000,
			AudioSampleRate: "44100",
		},
	}

	streams := descriptorsFromFormats(formats)
	if len(streams) != 2 {
		t.Fatalf("Expected 2 descriptors, got %d", len(streams))
	}

	video := streams[0]
	if video.FormatID != "137" || video.Kind() != model.StreamVideoOnly || video.Height != 1080 {
		t.Errorf("Unexpected video descriptor: %+v", video)
	}
	if video.TotalBitrate != 4500 {
		t.Errorf("Expected tbr in kbps, got %v", video.TotalBitrate)
	}

	audio := streams[1]
	if audio.Kind() != model.StreamAudioOnly || audio.AudioBitrate != 128 || audio.SampleRate != 44100 {
		t.Errorf("Unexpected audio descriptor: %+v", audio)
	}
}

func TestPickFormat(t *testing.T) {
	formats := youtube.FormatList{
		{ItagNo: 137, MimeType: `video/mp4; codecs="avc1.640028"`, Height: 1080},
		{ItagNo: 136, MimeType: `video/mp4; codecs="avc1.4d401f"`, Height: 720},
		{ItagNo: 140, MimeType: `audio/mp4; codecs="mp4a.40.2"`, AverageBitrate: 128000},
		{ItagNo: 251, MimeType: `audio/webm; codecs="opus"`, AverageBitrate: 160000},
	}

	t.Run("exact itag", func(t *testing.T) {
		f := pickFormat(formats, Selection{FormatID: "136"})
		if f == nil || f.ItagNo != 136 {
			t.Fatalf("Expected itag 136, got %+v", f)
		}
	})

	t.Run("video capped at requested height", func(t *testing.T) {
		f := pickFormat(formats, Selection{FormatID: "999", Kind: model.StreamVideoOnly, Height: 720})
		if f == nil || f.ItagNo != 136 {
			t.Fatalf("Expected itag 136 for 720p cap, got %+v", f)
		}
	})

	t.Run("best audio by bitrate", func(t *testing.T) {
		f := pickFormat(formats, Selection{FormatID: "999", Kind: model.StreamAudioOnly})
		if f == nil || f.ItagNo != 251 {
			t.Fatalf("Expected itag 251, got %+v", f)
		}
	})

	t.Run("no match", func(t *testing.T) {
		if f := pickFormat(formats, Selection{FormatID: "999", Kind: model.StreamMuxed}); f != nil {
			t.Fatalf("Expected nil for unmatched kind, got %+v", f)
		}
	})
}

func TestSelectCaption(t *testing.T) {
	tracks := []CaptionTrack{
		{URL: "auto-en", Language: "en", Format: "vtt", Auto: true},
		{URL: "manual-de", Language: "de", Format: "vtt"},
		{URL: "manual-en-srt", Language: "en", Format: "srt"},
		{URL: "manual-en-vtt", Language: "en", Format: "vtt"},
	}

	best := SelectCaption(tracks)
	if best == nil || best.URL != "manual-en-vtt" {
		t.Fatalf("Expected manual English vtt track, got %+v", best)
	}

	if SelectCaption(nil) != nil {
		t.Error("Expected nil for empty track list")
	}
}

func TestFetchCaptionText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("WEBVTT\n\nhello"))
	}))
	defer srv.Close()

	text, err := FetchCaptionText(context.Background(), CaptionTrack{URL: srv.URL})
	if err != nil {
		t.Fatalf("FetchCaptionText failed: %v", err)
	}
	if text != "WEBVTT\n\nhello" {
		t.Errorf("Unexpected payload %q", text)
	}
}

func TestFetchCaptionTextBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := FetchCaptionText(context.Background(), CaptionTrack{URL: srv.URL}); err == nil {
		t.Error("Expected error for non-200 response")
	}
}

type fakeExtractor struct {
	name       string
	meta       *VideoMetadata
	extractErr error
	fetchErr   error
	fetchCalls int
}

func (f *fakeExtractor) Name() string { return f.name }

func (f *fakeExtractor) Extract(ctx context.Context, url string) (*VideoMetadata, error) {
	if f.extractErr != nil {
		return nil, f.extractErr
	}
	return f.meta, nil
}

func (f *fakeExtractor) Fetch(ctx context.Context, url string, sel Selection, dest string, progress ProgressFunc) error {
	f.fetchCalls++
	return f.fetchErr
}

func TestChainFallsBackOnExtract(t *testing.T) {
	meta := &VideoMetadata{Title: "From Fallback", Streams: []model.StreamDescriptor{{FormatID: "1"}}}
	primary := &fakeExtractor{name: "primary", extractErr: errors.New("boom")}
	fallback := &fakeExtractor{name: "fallback", meta: meta}
	chain := NewChain(primary, fallback)

	got, err := chain.Extract(context.Background(), "https://example.com/v")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if got.Title != "From Fallback" {
		t.Errorf("Expected fallback metadata, got %+v", got)
	}
}

func TestChainCachesMetadata(t *testing.T) {
	meta := &VideoMetadata{Title: "Cached"}
	primary := &fakeExtractor{name: "primary", meta: meta}
	chain := NewChain(primary, &fakeExtractor{name: "fallback"})

	url := "https://example.com/v"
	if _, err := chain.Extract(context.Background(), url); err != nil {
		t.Fatalf("First extract failed: %v", err)
	}

	// Break the primary; the cache must answer.
	primary.extractErr = errors.New("offline")
	got, err := chain.Extract(context.Background(), url)
	if err != nil {
		t.Fatalf("Cached extract failed: %v", err)
	}
	if got.Title != "Cached" {
		t.Errorf("Expected cached metadata, got %+v", got)
	}

	if _, ok := chain.CachedMetadata(url); !ok {
		t.Error("Expected CachedMetadata hit")
	}
}

func TestChainExtractBothFail(t *testing.T) {
	chain := NewChain(
		&fakeExtractor{name: "primary", extractErr: errors.New("p")},
		&fakeExtractor{name: "fallback", extractErr: errors.New("f")},
	)

	if _, err := chain.Extract(context.Background(), "u"); err == nil {
		t.Error("Expected error when both strategies fail")
	}
}

func TestChainFetchFallback(t *testing.T) {
	primary := &fakeExtractor{name: "primary", fetchErr: errors.New("boom")}
	fallback := &fakeExtractor{name: "fallback"}
	chain := NewChain(primary, fallback)

	err := chain.Fetch(context.Background(), "u", Selection{FormatID: "137"}, "/tmp/x", nil)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if primary.fetchCalls != 1 || fallback.fetchCalls != 1 {
		t.Errorf("Expected both strategies tried once, got %d/%d", primary.fetchCalls, fallback.fetchCalls)
	}
}

func TestChainFetchCancelledContextSkipsFallback(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	primary := &fakeExtractor{name: "primary", fetchErr: context.Canceled}
	fallback := &fakeExtractor{name: "fallback"}
	chain := NewChain(primary, fallback)

	if err := chain.Fetch(ctx, "u", Selection{FormatID: "137"}, "/tmp/x", nil); err == nil {
		t.Fatal("Expected error from cancelled fetch")
	}
	if fallback.fetchCalls != 0 {
		t.Error("Expected fallback skipped after cancellation")
	}
}
