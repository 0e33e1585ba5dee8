package types

// Version is the canonical project version.
// The CLI, the IPC protocol client, and the join-secret scheme all report
// this single version (lockstep versioning).
const Version = "0.4.0"
