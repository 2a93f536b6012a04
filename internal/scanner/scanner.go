// Package scanner finds volumes eligible for cleanup.
package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"github.com/yairfalse/ebsreaper/pkg/resource"
)

// VolumeLister lists volumes by status, across every page.
type VolumeLister interface {
	ListVolumes(ctx context.Context, status string) ([]resource.Volume, error)
}

// Whitelist reports which tag key, if any, protects a volume.
type Whitelist interface {
	MatchedKey(tags map[string]string) (string, bool)
}

// Scanner narrows available volumes down to cleanup candidates.
type Scanner struct {
	lister    VolumeLister
	whitelist Whitelist
	now       func() time.Time
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithClock overrides the time source used for the age cutoff.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) {
		s.now = now
	}
}

// New creates a Scanner.
func New(lister VolumeLister, whitelist Whitelist, opts ...Option) *Scanner {
	s := &Scanner{
		lister:    lister,
		whitelist: whitelist,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cutoff returns the creation instant a volume must be strictly before.
func (s *Scanner) Cutoff(ageDays int) time.Time {
	return s.now().UTC().Add(-time.Duration(ageDays) * 24 * time.Hour)
}

// FindCandidates returns available volumes created before now minus ageDays
// that carry no whitelisted tag key, in provider order. A listing failure
// is returned as is; callers treat it as fatal.
func (s *Scanner) FindCandidates(ctx context.Context, ageDays int) ([]resource.Volume, error) {
	volumes, err := s.lister.ListVolumes(ctx, resource.StatusAvailable)
	if err != nil {
		return nil, fmt.Errorf("list volumes: %w", err)
	}

	now := s.now().UTC()
	cutoff := s.Cutoff(ageDays)
	candidates := make([]resource.Volume, 0, len(volumes))

	for _, v := range volumes {
		if reason, ok := s.skipReason(v, cutoff); ok {
			log.Debug().Str("volume_id", v.ID).Str("reason", reason).Msg("volume skipped")
			continue
		}

		log.Debug().
			Str("volume_id", v.ID).
			Str("created", humanize.RelTime(*v.CreatedAt, now, "ago", "from now")).
			Dur("age", v.Age(now)).
			Str("size", humanize.IBytes(uint64(v.SizeGiB)*humanize.GiByte)).
			Msg("volume is a cleanup candidate")
		candidates = append(candidates, v)
	}

	log.Info().
		Int("listed", len(volumes)).
		Int("candidates", len(candidates)).
		Time("cutoff", cutoff).
		Msg("scan complete")

	return candidates, nil
}

func (s *Scanner) skipReason(v resource.Volume, cutoff time.Time) (string, bool) {
	switch {
	case v.Status != resource.StatusAvailable:
		return "status " + v.Status, true
	case v.CreatedAt == nil:
		return "no creation time", true
	case !v.CreatedAt.Before(cutoff):
		return "too new", true
	}
	if s.whitelist != nil {
		if key, ok := s.whitelist.MatchedKey(v.Tags); ok {
			return "whitelisted by " + key, true
		}
	}
	return "", false
}
