package spaces

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1broseidon/winrestore/internal/platform/fake"
)

func newTracker(b *fake.Backend, max int) *Tracker {
	return NewTracker(b, b, Options{
		MaxSpaces: max,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestCurrentCreatesOneMarkerPerDesktop(t *testing.T) {
	ctx := context.Background()
	b := fake.New(1, 99)
	tr := newTracker(b, 0)

	first, ok := tr.Current(ctx)
	require.True(t, ok)
	again, ok := tr.Current(ctx)
	require.True(t, ok)

	assert.Equal(t, first, again)
	assert.Len(t, b.Markers(), 1)
	assert.Equal(t, 1, tr.Len())
	assert.True(t, tr.IsMarker(first))
	assert.Equal(t, Unknown, tr.State(first))

	b.SwitchSpace(1)
	second, ok := tr.Current(ctx)
	require.True(t, ok)
	assert.NotEqual(t, first, second)
	assert.Len(t, b.Markers(), 2)

	b.SwitchSpace(0)
	back, ok := tr.Current(ctx)
	require.True(t, ok)
	assert.Equal(t, first, back)
	assert.Len(t, b.Markers(), 2)
}

func TestCurrentResolvesMergedDesktops(t *testing.T) {
	ctx := context.Background()
	b := fake.New(1, 99)
	tr := newTracker(b, 0)

	a, ok := tr.Current(ctx)
	require.True(t, ok)
	b.SwitchSpace(1)
	fullscreen, ok := tr.Current(ctx)
	require.True(t, ok)

	// The full-screen application exits and its desktop folds into desktop 0.
	b.MoveToSpace(fullscreen, 0)
	b.SwitchSpace(0)

	got, ok := tr.Current(ctx)
	require.True(t, ok)
	assert.Equal(t, a, got, "oldest known space is canonical")
	assert.False(t, tr.IsMarker(fullscreen))
	assert.Equal(t, 1, tr.Len())
	assert.Equal(t, []uint32{uint32(a)}, markerIDs(b))
}

func TestCurrentUnavailableDesktop(t *testing.T) {
	ctx := context.Background()
	b := fake.New(1, 99)
	b.RefuseMarkers(0, true)
	tr := newTracker(b, 0)

	_, ok := tr.Current(ctx)
	assert.False(t, ok)
	assert.Zero(t, tr.Len())
	assert.Empty(t, b.Markers())
}

func TestCurrentEnumerationFailureCreatesNothing(t *testing.T) {
	ctx := context.Background()
	b := fake.New(1, 99)
	b.FailEnumeration = true
	tr := newTracker(b, 0)

	_, ok := tr.Current(ctx)
	assert.False(t, ok)
	assert.Empty(t, b.Markers())
}

func TestEvictsLeastRecentlySeen(t *testing.T) {
	ctx := context.Background()
	b := fake.New(1, 99)
	tr := newTracker(b, 2)

	s0, _ := tr.Current(ctx)
	b.SwitchSpace(1)
	s1, _ := tr.Current(ctx)
	b.SwitchSpace(0)
	_, _ = tr.Current(ctx)
	b.SwitchSpace(2)
	s2, ok := tr.Current(ctx)
	require.True(t, ok)

	assert.Equal(t, 2, tr.Len())
	assert.True(t, tr.IsMarker(s0))
	assert.False(t, tr.IsMarker(s1), "space 1 was seen least recently")
	assert.True(t, tr.IsMarker(s2))
	assert.Len(t, b.Markers(), 2)
}

func TestStateTransitions(t *testing.T) {
	ctx := context.Background()
	b := fake.New(1, 99)
	tr := newTracker(b, 0)

	a, _ := tr.Current(ctx)
	b.SwitchSpace(1)
	c, _ := tr.Current(ctx)

	tr.MarkAllPending()
	assert.Equal(t, PendingRestore, tr.State(a))
	assert.Equal(t, PendingRestore, tr.State(c))

	tr.MarkVisited(a)
	assert.Equal(t, Visited, tr.State(a))
	assert.Equal(t, PendingRestore, tr.State(c))

	tr.MarkPending(a)
	assert.Equal(t, PendingRestore, tr.State(a))

	assert.Equal(t, Unknown, tr.State(12345))
	tr.MarkVisited(12345)
	assert.Equal(t, 2, tr.Len(), "marking an unknown id does not register it")

	spaces := tr.Spaces()
	require.Len(t, spaces, 2)
	assert.Equal(t, a, spaces[0].ID)
	assert.Equal(t, c, spaces[1].ID)
}

func TestCloseDestroysMarkers(t *testing.T) {
	ctx := context.Background()
	b := fake.New(1, 99)
	tr := newTracker(b, 0)

	_, _ = tr.Current(ctx)
	b.SwitchSpace(1)
	_, _ = tr.Current(ctx)
	require.Len(t, b.Markers(), 2)

	tr.Close(ctx)
	assert.Zero(t, tr.Len())
	assert.Empty(t, b.Markers())
}

func markerIDs(b *fake.Backend) []uint32 {
	var out []uint32
	for _, id := range b.Markers() {
		out = append(out, uint32(id))
	}
	return out
}
