// Package report renders a run summary for notifications and terminals.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/yairfalse/ebsreaper/pkg/resource"
)

// Subject is the fixed notification subject for every run.
const Subject = "Cost Optimizer Run"

// Render serializes the summary as two-space indented JSON. Field order
// follows the struct definitions and is stable across runs.
func Render(s resource.Summary) (string, error) {
	if s.Deleted == nil {
		s.Deleted = make([]resource.Outcome, 0)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal summary: %w", err)
	}
	return string(data), nil
}

var (
	headerColor  = color.New(color.Bold)
	dryRunColor  = color.New(color.FgYellow)
	deletedColor = color.New(color.FgGreen)
)

// Text writes a human-readable summary to w.
func Text(w io.Writer, s resource.Summary) error {
	mode := "LIVE"
	if s.DryRun {
		mode = "DRY RUN"
	}

	if _, err := headerColor.Fprintf(w, "%s: %d volume(s) processed\n", mode, len(s.Deleted)); err != nil {
		return err
	}

	if len(s.Deleted) == 0 {
		_, err := fmt.Fprintln(w, "  nothing to clean up")
		return err
	}

	for _, o := range s.Deleted {
		var err error
		switch {
		case o.Deleted:
			_, err = deletedColor.Fprintf(w, "  - %s deleted\n", o.VolumeID)
		case o.DryRun:
			_, err = dryRunColor.Fprintf(w, "  - %s would be deleted\n", o.VolumeID)
		default:
			_, err = fmt.Fprintf(w, "  - %s untouched\n", o.VolumeID)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
