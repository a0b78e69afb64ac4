package platform

// Package platform contains filesystem glue shared by the pipeline: output
// filename sanitization, durable output directory management, and stale
// artifact cleanup.
