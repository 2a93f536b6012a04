// Package resource defines the volume and run-summary model for ebsreaper.
package resource

import "time"

// Volume statuses reported by the provider.
const (
	StatusAvailable = "available"
	StatusInUse     = "in-use"
)

// Volume represents one block-storage volume as read from the provider.
// Owned by the provider; ebsreaper only reads it and conditionally deletes it.
type Volume struct {
	ID               string            `json:"id"`                // e.g. "vol-0abc123"
	Status           string            `json:"status"`            // "available", "in-use", ...
	CreatedAt        *time.Time        `json:"created_at"`        // nil when the provider omits it
	Tags             map[string]string `json:"tags"`              // tag key -> tag value
	Region           string            `json:"region"`            // e.g. "us-east-1"
	AvailabilityZone string            `json:"availability_zone"` // e.g. "us-east-1a"
	SizeGiB          int32             `json:"size_gib"`
	Type             string            `json:"type"` // gp3, io2, ...
}

// Age returns how long ago the volume was created, or zero if unknown.
func (v Volume) Age(now time.Time) time.Duration {
	if v.CreatedAt == nil {
		return 0
	}
	return now.Sub(*v.CreatedAt)
}

// Outcome is the result of handling a single candidate volume.
type Outcome struct {
	VolumeID string `json:"VolumeId"`
	Deleted  bool   `json:"Deleted"`
	DryRun   bool   `json:"DryRun"`
}

// Summary aggregates the outcomes of one run.
type Summary struct {
	Deleted []Outcome `json:"deleted"`
	DryRun  bool      `json:"dry_run"`
}

// NewSummary creates an empty summary. Deleted is never nil so it renders as [].
func NewSummary(dryRun bool) Summary {
	return Summary{Deleted: make([]Outcome, 0), DryRun: dryRun}
}

// StatusOK marks a run that completed its deletion loop.
const StatusOK = "ok"

// RunResult is what a run returns to its invoker.
type RunResult struct {
	Status  string  `json:"status"`
	Summary Summary `json:"summary"`
}
