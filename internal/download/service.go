package download

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/grabtube/grabtube/internal/extract"
	"github.com/grabtube/grabtube/internal/metrics"
	"github.com/grabtube/grabtube/internal/model"
	"github.com/grabtube/grabtube/internal/mux"
	"github.com/grabtube/grabtube/internal/platform"
	"github.com/grabtube/grabtube/internal/store"
	"github.com/grabtube/grabtube/internal/transcript"
)

// User-facing progress messages. Polling clients render these verbatim.
const (
	MsgDownloadingVideo  = "Downloading video..."
	MsgDownloadingAudio  = "Downloading audio..."
	MsgMerging           = "Merging video and audio..."
	MsgComplete          = "Download complete"
	MsgVideoOnlyComplete = "Video-only download complete"
	MsgAudioComplete     = "Audio download complete"
)

// audioExt is forced for audio retrievals so the output container is
// predictable regardless of the source stream.
const audioExt = "m4a"

// DefaultMergeExt is the merged artifact container when the caller does not
// choose one. The merge re-encodes audio to AAC, which WebM containers
// reject, so the video stream's native extension is not a safe default.
const DefaultMergeExt = "mp4"

// DefaultStreamTimeout bounds a single stream retrieval.
const DefaultStreamTimeout = 30 * time.Minute

// Request describes one download submission. The selections carry enough
// context (kind, height) for a fallback strategy to pick its own closest
// match when the primary's format ID means nothing to it.
type Request struct {
	URL    string
	Intent model.Intent
	Video  extract.Selection
	Audio  extract.Selection

	// OutputExt names the merged artifact's container for combined intents.
	// Empty means DefaultMergeExt.
	OutputExt string
}

// Extractor is the slice of extract.Chain the engine needs.
type Extractor interface {
	Extract(ctx context.Context, url string) (*extract.VideoMetadata, error)
	Fetch(ctx context.Context, url string, sel extract.Selection, dest string, progress extract.ProgressFunc) error
}

// Service orchestrates download jobs. Job state lives in the tracker; the
// engine only ever touches it through Apply, fed by the progress event
// dispatcher.
type Service struct {
	extractor     Extractor
	combiner      mux.Combiner
	tracker       *store.Tracker
	outputDir     string
	streamTimeout time.Duration

	// captionFetch is swappable for tests.
	captionFetch func(ctx context.Context, track extract.CaptionTrack) (string, error)

	events chan progressEvent
	stop   chan struct{}
}

type progressEvent struct {
	jobID   string
	stream  model.StreamKind
	percent float64
}

func NewService(extractor Extractor, combiner mux.Combiner, tracker *store.Tracker, outputDir string, streamTimeout time.Duration) *Service {
	if streamTimeout <= 0 {
		streamTimeout = DefaultStreamTimeout
	}
	s := &Service{
		extractor:     extractor,
		combiner:      combiner,
		tracker:       tracker,
		outputDir:     outputDir,
		streamTimeout: streamTimeout,
		captionFetch:  extract.FetchCaptionText,
		events:        make(chan progressEvent, 64),
		stop:          make(chan struct{}),
	}
	go s.dispatch()
	return s
}

// Close stops the progress dispatcher. Running jobs finish their fetches but
// stop reporting progress.
func (s *Service) Close() {
	close(s.stop)
}

func (s *Service) dispatch() {
	for {
		select {
		case ev := <-s.events:
			s.tracker.Apply(ev.jobID, func(j *model.DownloadJob) {
				// A queued event can arrive after the job finished; the
				// terminal state owns the progress fields by then.
				if j.Status.IsFinished() {
					return
				}
				if ev.stream == model.StreamAudioOnly {
					j.AudioProgress = ev.percent
				} else {
					j.VideoProgress = ev.percent
				}
			})
		case <-s.stop:
			return
		}
	}
}

func (s *Service) publish(ev progressEvent) {
	select {
	case s.events <- ev:
	case <-s.stop:
	}
}

// Submit validates a request, registers a pending job, and starts retrieval
// in the background. The returned snapshot carries the job ID for polling.
func (s *Service) Submit(req Request) (model.Snapshot, error) {
	if req.URL == "" {
		return model.Snapshot{}, fmt.Errorf("missing URL")
	}
	if !req.Intent.Valid() {
		return model.Snapshot{}, fmt.Errorf("invalid download type: %q", req.Intent)
	}
	if req.Intent.NeedsVideo() && req.Video.FormatID == "" {
		return model.Snapshot{}, fmt.Errorf("missing video format selection")
	}
	if req.Intent.NeedsAudio() && req.Audio.FormatID == "" {
		return model.Snapshot{}, fmt.Errorf("missing audio format selection")
	}

	id := uuid.New().String()
	snapshot := s.tracker.Create(id, req.Intent)
	metrics.JobsStartedTotal.WithLabelValues(string(req.Intent)).Inc()

	go s.run(id, req)

	return snapshot, nil
}

func (s *Service) run(id string, req Request) {
	started := time.Now()
	metrics.JobsInFlight.Inc()
	defer metrics.JobsInFlight.Dec()

	err := s.execute(id, req)

	finalStatus := model.JobStatusComplete
	if err != nil {
		finalStatus = model.JobStatusError
		log.Printf("Job %s failed: %v", id, err)
	}
	metrics.JobsFinishedTotal.WithLabelValues(string(req.Intent), finalStatus.String()).Inc()
	metrics.JobDuration.WithLabelValues(string(req.Intent)).Observe(time.Since(started).Seconds())
}

func (s *Service) execute(id string, req Request) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.streamTimeout)
	meta, err := s.extractor.Extract(ctx, req.URL)
	cancel()
	if err != nil {
		s.fail(id, "Error: could not retrieve video information", err)
		return err
	}

	safeName := platform.SanitizeFilename(meta.Title)

	tmpDir, err := os.MkdirTemp("", "grabtube-")
	if err != nil {
		s.fail(id, "Error: could not prepare working directory", err)
		return err
	}
	defer os.RemoveAll(tmpDir)

	var finalPath string
	switch req.Intent {
	case model.IntentCombined:
		finalPath, err = s.runCombined(id, req, meta, safeName, tmpDir)
	case model.IntentVideoOnly:
		finalPath, err = s.runSingle(id, req.URL, req.Video, meta, safeName, tmpDir, model.StreamVideoOnly)
	case model.IntentAudioOnly:
		finalPath, err = s.runSingle(id, req.URL, req.Audio, meta, safeName, tmpDir, model.StreamAudioOnly)
	}
	if err != nil {
		return err
	}

	text := s.buildTranscript(meta)

	s.tracker.Apply(id, func(j *model.DownloadJob) {
		j.Status = model.JobStatusComplete
		j.VideoProgress = 100
		j.AudioProgress = 100
		j.Message = completionMessage(req.Intent)
		j.OutputPath = finalPath
		j.OutputFilename = filepath.Base(finalPath)
		j.Transcript = text
	})
	return nil
}

// runCombined fetches video then audio sequentially and merges them into the
// requested container.
func (s *Service) runCombined(id string, req Request, meta *extract.VideoMetadata, safeName, tmpDir string) (string, error) {
	videoExt := streamExt(meta, req.Video.FormatID, "mp4")
	videoPath := filepath.Join(tmpDir, fmt.Sprintf("%s_video.%s", safeName, videoExt))
	audioPath := filepath.Join(tmpDir, fmt.Sprintf("%s_audio.%s", safeName, audioExt))

	s.setProgressMessage(id, MsgDownloadingVideo)
	if err := s.fetchStream(id, req.URL, req.Video, videoPath, model.StreamVideoOnly); err != nil {
		s.fail(id, fmt.Sprintf("Error downloading video: %v", err), err)
		return "", err
	}

	s.setProgressMessage(id, MsgDownloadingAudio)
	if err := s.fetchStream(id, req.URL, req.Audio, audioPath, model.StreamAudioOnly); err != nil {
		s.fail(id, fmt.Sprintf("Error downloading audio: %v", err), err)
		return "", err
	}

	s.tracker.Apply(id, func(j *model.DownloadJob) {
		j.Status = model.JobStatusMerging
		j.Message = MsgMerging
	})

	mergeExt := req.OutputExt
	if mergeExt == "" {
		mergeExt = DefaultMergeExt
	}
	mergedPath := filepath.Join(tmpDir, fmt.Sprintf("%s.%s", safeName, mergeExt))
	ctx, cancel := context.WithTimeout(context.Background(), s.streamTimeout)
	defer cancel()
	if err := s.combiner.Combine(ctx, videoPath, audioPath, mergedPath); err != nil {
		metrics.MergesTotal.WithLabelValues("error").Inc()
		s.fail(id, fmt.Sprintf("Error merging files: %v", err), err)
		return "", err
	}
	metrics.MergesTotal.WithLabelValues("ok").Inc()

	return s.publishArtifact(id, mergedPath)
}

// runSingle fetches exactly one stream. Audio output is always m4a.
func (s *Service) runSingle(id, url string, sel extract.Selection, meta *extract.VideoMetadata, safeName, tmpDir string, slot model.StreamKind) (string, error) {
	var filename, message string
	if slot == model.StreamAudioOnly {
		filename = fmt.Sprintf("%s.%s", safeName, audioExt)
		message = MsgDownloadingAudio
	} else {
		filename = fmt.Sprintf("%s.%s", safeName, streamExt(meta, sel.FormatID, "mp4"))
		message = MsgDownloadingVideo
	}

	s.setProgressMessage(id, message)
	dest := filepath.Join(tmpDir, filename)
	if err := s.fetchStream(id, url, sel, dest, slot); err != nil {
		stream := "video"
		if slot == model.StreamAudioOnly {
			stream = "audio"
		}
		s.fail(id, fmt.Sprintf("Error downloading %s: %v", stream, err), err)
		return "", err
	}

	return s.publishArtifact(id, dest)
}

// publishArtifact copies the finished file out of the temp directory into the
// durable output directory.
func (s *Service) publishArtifact(id, src string) (string, error) {
	finalPath := filepath.Join(s.outputDir, filepath.Base(src))
	if err := platform.CopyFile(src, finalPath); err != nil {
		s.fail(id, "Error: could not store the downloaded file", err)
		return "", err
	}
	return finalPath, nil
}

// fetchStream retrieves one stream under the per-stream timeout, forwarding
// progress events. Progress is forced to 100 on success even when the source
// never reported a total.
func (s *Service) fetchStream(id, url string, sel extract.Selection, dest string, slot model.StreamKind) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.streamTimeout)
	defer cancel()

	var lastDownloaded int64
	err := s.extractor.Fetch(ctx, url, sel, dest, func(downloaded, total int64) {
		if downloaded > lastDownloaded {
			metrics.DownloadedBytesTotal.Add(float64(downloaded - lastDownloaded))
			lastDownloaded = downloaded
		} else if downloaded < lastDownloaded {
			// Fallback strategy restarted the stream from zero.
			lastDownloaded = downloaded
		}

		var percent float64
		if total > 0 {
			percent = float64(downloaded) / float64(total) * 100
			if percent > 100 {
				percent = 100
			}
		}
		s.publish(progressEvent{jobID: id, stream: slot, percent: percent})
	})
	if err != nil {
		return err
	}

	s.publish(progressEvent{jobID: id, stream: slot, percent: 100})
	return nil
}

// buildTranscript picks the best caption track, downloads it, and normalizes
// it. Every failure path degrades to the explicit unavailable sentinel.
func (s *Service) buildTranscript(meta *extract.VideoMetadata) string {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	return TranscriptText(ctx, meta.Captions, s.captionFetch)
}

// TranscriptText picks the best caption track, downloads it, and runs the
// cleaner matching the track's payload format. Every failure path yields the
// unavailable sentinel.
func TranscriptText(ctx context.Context, captions []extract.CaptionTrack, fetch func(context.Context, extract.CaptionTrack) (string, error)) string {
	track := extract.SelectCaption(captions)
	if track == nil {
		return model.TranscriptUnavailable
	}

	raw, err := fetch(ctx, *track)
	if err != nil {
		log.Printf("Caption download failed (%s): %v", track.Language, err)
		return model.TranscriptUnavailable
	}

	text := transcript.Normalize(track.Format, raw)
	if text == "" {
		return model.TranscriptUnavailable
	}
	return text
}

func (s *Service) setProgressMessage(id, message string) {
	s.tracker.Apply(id, func(j *model.DownloadJob) {
		j.Status = model.JobStatusDownloading
		j.Message = message
	})
}

func (s *Service) fail(id, message string, err error) {
	s.tracker.Apply(id, func(j *model.DownloadJob) {
		j.Status = model.JobStatusError
		j.Message = message
		j.ErrorDetail = err.Error()
	})
}

func completionMessage(intent model.Intent) string {
	switch intent {
	case model.IntentVideoOnly:
		return MsgVideoOnlyComplete
	case model.IntentAudioOnly:
		return MsgAudioComplete
	default:
		return MsgComplete
	}
}

// streamExt looks up the container extension of a selected format, falling
// back when the format ID is unknown to the metadata.
func streamExt(meta *extract.VideoMetadata, formatID, fallback string) string {
	for _, stream := range meta.Streams {
		if stream.FormatID == formatID && stream.Container != "" {
			return stream.Container
		}
	}
	return fallback
}
