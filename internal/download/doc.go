// Package download runs the retrieval pipeline: one goroutine per job
// fetches the selected streams into a temp directory, merges them with
// ffmpeg when the intent asks for both, attaches a normalized transcript,
// and publishes progress through the job tracker.
package download
