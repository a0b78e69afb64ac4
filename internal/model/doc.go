package model

// Package model defines domain data structures used across the app: stream
// descriptors, the classified format catalog, download jobs, and status/intent
// enums. Structures are designed for direct JSON binding in the API and
// explicit state transitions.
