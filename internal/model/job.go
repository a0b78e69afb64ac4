package model

import "time"

// Intent is the caller's declared goal for a download job.
type Intent string

const (
	// IntentCombined retrieves video and audio separately and muxes them
	IntentCombined Intent = "combined"

	// IntentVideoOnly retrieves a single video stream
	IntentVideoOnly Intent = "video_only"

	// IntentAudioOnly retrieves a single audio stream
	IntentAudioOnly Intent = "audio_only"
)

// Valid reports whether the intent is one of the three known values.
func (i Intent) Valid() bool {
	return i == IntentCombined || i == IntentVideoOnly || i == IntentAudioOnly
}

// NeedsVideo reports whether the intent requires a video stream selector.
func (i Intent) NeedsVideo() bool { return i != IntentAudioOnly }

// NeedsAudio reports whether the intent requires an audio stream selector.
func (i Intent) NeedsAudio() bool { return i != IntentVideoOnly }

// JobStatus represents the lifecycle phase of a download job. Transitions are
// monotonic forward except error, which is terminal and may occur in any
// phase.
type JobStatus string

const (
	// JobStatusPending means the job is created but retrieval has not begun
	JobStatusPending JobStatus = "pending"

	// JobStatusDownloading means stream retrieval is in progress
	JobStatusDownloading JobStatus = "downloading"

	// JobStatusMerging means retrieved streams are being combined
	JobStatusMerging JobStatus = "merging"

	// JobStatusComplete means the final artifact is available
	JobStatusComplete JobStatus = "complete"

	// JobStatusError means the job failed; terminal
	JobStatusError JobStatus = "error"
)

// String returns the string representation of JobStatus.
func (s JobStatus) String() string { return string(s) }

// IsFinished reports whether the job is in a terminal state.
func (s JobStatus) IsFinished() bool {
	return s == JobStatusComplete || s == JobStatusError
}

// TranscriptUnavailable is the explicit sentinel attached to a completed job
// when the source has no caption track, so consumers can render "no
// transcript" without special-casing an absent field.
const TranscriptUnavailable = "Captions unavailable"

// DownloadJob is one in-flight or completed retrieval+mux operation. It is
// exclusively owned and mutated by the retrieval engine while running and
// exposed read-only to callers through snapshot copies.
type DownloadJob struct {
	ID             string
	Intent         Intent
	Status         JobStatus
	VideoProgress  float64 // 0-100
	AudioProgress  float64 // 0-100
	Progress       float64 // average of the two
	Message        string
	OutputPath     string
	OutputFilename string
	Transcript     string
	ErrorDetail    string
	CreatedAt      time.Time
	FinishedAt     time.Time
}

// RecomputeProgress refreshes the overall progress as the average of the two
// per-stream values. A stream not part of the intent stays pinned at 100, so
// the average stays meaningful for every intent.
func (j *DownloadJob) RecomputeProgress() {
	j.Progress = (j.VideoProgress + j.AudioProgress) / 2
}

// Snapshot is the caller-facing polling view of a job. Filename and
// Transcript are present only once populated.
type Snapshot struct {
	JobID        string  `json:"job_id"`
	Status       string  `json:"status"`
	Progress     float64 `json:"progress"`
	Message      string  `json:"message"`
	DownloadType Intent  `json:"download_type"`
	Filename     string  `json:"filename,omitempty"`
	Transcript   string  `json:"transcript,omitempty"`
}

// Snapshot returns the polling view of the job.
func (j *DownloadJob) Snapshot() Snapshot {
	return Snapshot{
		JobID:        j.ID,
		Status:       j.Status.String(),
		Progress:     j.Progress,
		Message:      j.Message,
		DownloadType: j.Intent,
		Filename:     j.OutputFilename,
		Transcript:   j.Transcript,
	}
}
