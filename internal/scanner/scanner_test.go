package scanner

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/ebsreaper/internal/filter"
	"github.com/yairfalse/ebsreaper/pkg/resource"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type mockLister struct {
	volumes []resource.Volume
	err     error
	status  string
	calls   int
}

func (m *mockLister) ListVolumes(_ context.Context, status string) ([]resource.Volume, error) {
	m.calls++
	m.status = status
	return m.volumes, m.err
}

func daysAgo(d int) *time.Time {
	t := testNow.Add(-time.Duration(d) * 24 * time.Hour)
	return &t
}

func newTestScanner(l VolumeLister) *Scanner {
	return New(l, filter.New([]string{"Keep", "DoNotDelete"}), WithClock(func() time.Time { return testNow }))
}

func TestFindCandidates_Scenario(t *testing.T) {
	lister := &mockLister{volumes: []resource.Volume{
		{ID: "V1", Status: "available", CreatedAt: daysAgo(40)},
		{ID: "V2", Status: "available", CreatedAt: daysAgo(40), Tags: map[string]string{"Keep": "true"}},
		{ID: "V3", Status: "in-use", CreatedAt: daysAgo(100)},
	}}

	candidates, err := newTestScanner(lister).FindCandidates(context.Background(), 30)

	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "V1", candidates[0].ID)
	assert.Equal(t, "available", lister.status)
	assert.Equal(t, 1, lister.calls)
}

func TestFindCandidates_StatusNeverAvailable(t *testing.T) {
	lister := &mockLister{volumes: []resource.Volume{
		{ID: "vol-inuse", Status: "in-use", CreatedAt: daysAgo(365)},
		{ID: "vol-creating", Status: "creating", CreatedAt: daysAgo(365)},
		{ID: "vol-error", Status: "error", CreatedAt: daysAgo(365)},
	}}

	candidates, err := newTestScanner(lister).FindCandidates(context.Background(), 0)

	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestFindCandidates_CutoffIsStrict(t *testing.T) {
	exactlyAtCutoff := testNow.Add(-30 * 24 * time.Hour)
	justBefore := exactlyAtCutoff.Add(-time.Second)
	justAfter := exactlyAtCutoff.Add(time.Second)

	lister := &mockLister{volumes: []resource.Volume{
		{ID: "at", Status: "available", CreatedAt: &exactlyAtCutoff},
		{ID: "before", Status: "available", CreatedAt: &justBefore},
		{ID: "after", Status: "available", CreatedAt: &justAfter},
	}}

	candidates, err := newTestScanner(lister).FindCandidates(context.Background(), 30)

	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "before", candidates[0].ID)
}

func TestFindCandidates_MissingCreationTime(t *testing.T) {
	lister := &mockLister{volumes: []resource.Volume{
		{ID: "vol-unknown", Status: "available"},
	}}

	candidates, err := newTestScanner(lister).FindCandidates(context.Background(), 0)

	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestFindCandidates_PreservesProviderOrder(t *testing.T) {
	lister := &mockLister{volumes: []resource.Volume{
		{ID: "vol-c", Status: "available", CreatedAt: daysAgo(50)},
		{ID: "vol-a", Status: "available", CreatedAt: daysAgo(90)},
		{ID: "vol-skip", Status: "available", CreatedAt: daysAgo(90), Tags: map[string]string{"DoNotDelete": ""}},
		{ID: "vol-b", Status: "available", CreatedAt: daysAgo(31)},
	}}

	candidates, err := newTestScanner(lister).FindCandidates(context.Background(), 30)

	require.NoError(t, err)
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"vol-c", "vol-a", "vol-b"}, ids)
}

func TestFindCandidates_LogsSkipReasonAndAge(t *testing.T) {
	prev := log.Logger
	defer func() { log.Logger = prev }()
	var buf bytes.Buffer
	log.Logger = zerolog.New(&buf).Level(zerolog.DebugLevel)

	lister := &mockLister{volumes: []resource.Volume{
		{ID: "vol-kept", Status: "available", CreatedAt: daysAgo(40), Tags: map[string]string{"DoNotDelete": ""}},
		{ID: "vol-old", Status: "available", CreatedAt: daysAgo(40), SizeGiB: 8},
	}}

	_, err := newTestScanner(lister).FindCandidates(context.Background(), 30)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"reason":"whitelisted by DoNotDelete"`)
	assert.Contains(t, out, `"age":`)
	assert.Contains(t, out, `"size":"8.0 GiB"`)
}

func TestFindCandidates_NoWhitelist(t *testing.T) {
	lister := &mockLister{volumes: []resource.Volume{
		{ID: "vol-1", Status: "available", CreatedAt: daysAgo(40), Tags: map[string]string{"Keep": "true"}},
	}}

	s := New(lister, nil, WithClock(func() time.Time { return testNow }))
	candidates, err := s.FindCandidates(context.Background(), 30)

	require.NoError(t, err)
	assert.Len(t, candidates, 1)
}

func TestFindCandidates_ListError(t *testing.T) {
	lister := &mockLister{err: errors.New("UnauthorizedOperation")}

	candidates, err := newTestScanner(lister).FindCandidates(context.Background(), 30)

	require.Error(t, err)
	assert.Nil(t, candidates)
	assert.Contains(t, err.Error(), "UnauthorizedOperation")
}

func TestFindCandidates_Empty(t *testing.T) {
	candidates, err := newTestScanner(&mockLister{}).FindCandidates(context.Background(), 30)

	require.NoError(t, err)
	assert.NotNil(t, candidates)
	assert.Empty(t, candidates)
}

func TestCutoff(t *testing.T) {
	s := newTestScanner(&mockLister{})
	assert.Equal(t, time.Date(2026, 1, 30, 12, 0, 0, 0, time.UTC), s.Cutoff(30))
	assert.Equal(t, testNow, s.Cutoff(0))
}
