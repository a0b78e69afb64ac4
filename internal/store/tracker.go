// Package store tracks download jobs in memory. The tracker is the single
// owner of job state: the engine mutates through Apply, callers read through
// snapshot copies, and an optional callback pushes every change to live
// listeners.
package store

import (
	"sync"
	"time"

	"github.com/grabtube/grabtube/internal/model"
)

// pinnedProgress is assigned to the stream a job's intent does not cover, so
// the overall average reflects only real work.
const pinnedProgress = 100

// Tracker is a concurrency-safe registry of download jobs.
type Tracker struct {
	mu       sync.RWMutex
	jobs     map[string]*model.DownloadJob
	onUpdate func(model.Snapshot)
}

func NewTracker() *Tracker {
	return &Tracker{
		jobs: make(map[string]*model.DownloadJob),
	}
}

// SetUpdateCallback registers a listener invoked with a snapshot after every
// state change. Must be called before the tracker is shared.
func (t *Tracker) SetUpdateCallback(callback func(model.Snapshot)) {
	t.onUpdate = callback
}

// Create registers a new pending job. The stream the intent does not need is
// pinned at 100 immediately so progress averaging never stalls on it.
func (t *Tracker) Create(id string, intent model.Intent) model.Snapshot {
	job := &model.DownloadJob{
		ID:        id,
		Intent:    intent,
		Status:    model.JobStatusPending,
		Message:   "Starting download...",
		CreatedAt: time.Now(),
	}
	if !intent.NeedsVideo() {
		job.VideoProgress = pinnedProgress
	}
	if !intent.NeedsAudio() {
		job.AudioProgress = pinnedProgress
	}
	job.RecomputeProgress()

	t.mu.Lock()
	t.jobs[id] = job
	snapshot := job.Snapshot()
	t.mu.Unlock()

	t.notify(snapshot)
	return snapshot
}

// Get returns the polling view of a job.
func (t *Tracker) Get(id string) (model.Snapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	job, ok := t.jobs[id]
	if !ok {
		return model.Snapshot{}, false
	}
	return job.Snapshot(), true
}

// Apply runs fn against the job under the write lock, refreshes the overall
// progress, and stamps FinishedAt on transition into a terminal state.
// Returns false when the job does not exist.
func (t *Tracker) Apply(id string, fn func(*model.DownloadJob)) bool {
	t.mu.Lock()
	job, ok := t.jobs[id]
	if !ok {
		t.mu.Unlock()
		return false
	}

	fn(job)
	job.RecomputeProgress()
	if job.Status.IsFinished() && job.FinishedAt.IsZero() {
		job.FinishedAt = time.Now()
	}
	snapshot := job.Snapshot()
	t.mu.Unlock()

	t.notify(snapshot)
	return true
}

// Len reports how many jobs the tracker currently holds.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.jobs)
}

// Evict removes finished jobs older than maxAge and returns how many were
// dropped. Running jobs are never evicted regardless of age.
func (t *Tracker) Evict(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	t.mu.Lock()
	defer t.mu.Unlock()

	evicted := 0
	for id, job := range t.jobs {
		if !job.Status.IsFinished() {
			continue
		}
		if job.FinishedAt.Before(cutoff) {
			delete(t.jobs, id)
			evicted++
		}
	}
	return evicted
}

// StartJanitor evicts expired jobs on a ticker until stop is closed.
func (t *Tracker) StartJanitor(maxAge, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.Evict(maxAge)
			case <-stop:
				return
			}
		}
	}()
}

func (t *Tracker) notify(snapshot model.Snapshot) {
	if t.onUpdate != nil {
		t.onUpdate(snapshot)
	}
}
