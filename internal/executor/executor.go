// Package executor deletes cleanup candidates, or pretends to in dry-run mode.
package executor

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/yairfalse/ebsreaper/pkg/resource"
)

// VolumeDeleter permanently deletes a volume.
type VolumeDeleter interface {
	DeleteVolume(ctx context.Context, volumeID string) error
}

// Executor applies the delete decision for one volume at a time.
type Executor struct {
	deleter VolumeDeleter
	dryRun  bool
}

// New creates an Executor. With dryRun set the deleter is never called.
func New(deleter VolumeDeleter, dryRun bool) *Executor {
	return &Executor{deleter: deleter, dryRun: dryRun}
}

// DryRun reports whether the executor only simulates deletions.
func (e *Executor) DryRun() bool {
	return e.dryRun
}

// Delete deletes a volume, or simulates it in dry-run mode. Provider errors
// are returned unchanged; the volume is then not part of the outcome list.
func (e *Executor) Delete(ctx context.Context, volumeID string) (resource.Outcome, error) {
	if e.dryRun {
		log.Info().Str("volume_id", volumeID).Msg("dry run: would delete volume")
		return resource.Outcome{VolumeID: volumeID, Deleted: false, DryRun: true}, nil
	}

	if err := e.deleter.DeleteVolume(ctx, volumeID); err != nil {
		return resource.Outcome{}, err
	}

	log.Info().Str("volume_id", volumeID).Msg("volume deleted")
	return resource.Outcome{VolumeID: volumeID, Deleted: true, DryRun: false}, nil
}
