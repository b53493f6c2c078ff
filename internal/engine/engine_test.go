package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1broseidon/winrestore/internal/layout"
	"github.com/1broseidon/winrestore/internal/platform"
	"github.com/1broseidon/winrestore/internal/platform/fake"
	"github.com/1broseidon/winrestore/internal/spaces"
)

const selfPID = 99

type harness struct {
	b     *fake.Backend
	state *State
	eng   *Engine
}

func newHarness(t *testing.T, displays int, opts Options) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := fake.New(displays, selfPID)
	tr := spaces.NewTracker(b, b, spaces.Options{Logger: logger})
	st := NewState(layout.CountSignature(displays), tr)
	opts.Logger = logger
	opts.SelfPID = selfPID
	return &harness{b: b, state: st, eng: New(st, b, b, opts)}
}

func rect(x, y, w, h int) platform.Rect {
	return platform.Rect{X: x, Y: y, Width: w, Height: h}
}

// replug walks the harness through a display change the way the daemon does.
func (h *harness) replug(ctx context.Context, displays int) RestoreReport {
	h.b.SetDisplays(displays)
	h.eng.OnArrangementChanged(ctx, layout.CountSignature(displays))
	return h.eng.RestoreIfPending(ctx)
}

func TestScenarioUnplugRestoresOriginalBounds(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 1, Options{})

	b1, b2 := rect(0, 0, 800, 600), rect(100, 100, 640, 480)
	w1 := h.b.AddWindow(fake.Window{PID: 10, Bounds: b1})
	w2 := h.b.AddWindow(fake.Window{PID: 10, Bounds: b2})

	require.Equal(t, StatusNotPending, h.eng.RestoreIfPending(ctx).Status)

	rep := h.replug(ctx, 2)
	require.Equal(t, StatusNoCache, rep.Status)

	// The window manager spreads the windows over the new screen.
	h.b.Move(w1, rect(1920, 0, 800, 600))
	h.b.Move(w2, rect(2100, 200, 640, 480))

	rep = h.replug(ctx, 1)
	require.Equal(t, StatusApplied, rep.Status)
	require.Len(t, rep.Processes, 1)
	assert.Equal(t, ProcessApplied, rep.Processes[0].Status)
	assert.Equal(t, 2, rep.Written())

	assert.Equal(t, b1, h.b.Bounds(w1))
	assert.Equal(t, b2, h.b.Bounds(w2))
}

func TestScenarioNewWindowBeforeRestoreSkipsProcess(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 1, Options{})

	w1 := h.b.AddWindow(fake.Window{PID: 10, Bounds: rect(0, 0, 800, 600)})
	w2 := h.b.AddWindow(fake.Window{PID: 10, Bounds: rect(50, 50, 800, 600)})
	other := h.b.AddWindow(fake.Window{PID: 20, Bounds: rect(300, 300, 400, 300)})
	h.eng.RestoreIfPending(ctx)

	h.replug(ctx, 2)
	moved1, moved2, movedOther := rect(1920, 0, 800, 600), rect(1970, 50, 800, 600), rect(2200, 300, 400, 300)
	h.b.Move(w1, moved1)
	h.b.Move(w2, moved2)
	h.b.Move(other, movedOther)

	h.b.SetDisplays(1)
	h.eng.OnArrangementChanged(ctx, "1")
	w3 := h.b.AddWindow(fake.Window{PID: 10, Bounds: rect(10, 10, 300, 200)})
	rep := h.eng.RestoreIfPending(ctx)

	require.Equal(t, StatusApplied, rep.Status)
	byPID := map[layout.ProcessID]ProcessReport{}
	for _, p := range rep.Processes {
		byPID[p.PID] = p
	}
	assert.Equal(t, ProcessCountMismatch, byPID[10].Status)
	assert.Equal(t, 2, byPID[10].Cached)
	assert.Equal(t, 3, byPID[10].Live)
	assert.Zero(t, byPID[10].Written)
	assert.Equal(t, ProcessApplied, byPID[20].Status)

	assert.Equal(t, moved1, h.b.Bounds(w1))
	assert.Equal(t, moved2, h.b.Bounds(w2))
	assert.Equal(t, rect(10, 10, 300, 200), h.b.Bounds(w3))
	assert.Equal(t, rect(300, 300, 400, 300), h.b.Bounds(other))
	for _, w := range h.b.Writes() {
		assert.NotContains(t, []platform.WindowID{w1, w2, w3}, w.ID)
	}
}

func TestRestoreSkipsPlaceholders(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 1, Options{})

	w1 := h.b.AddWindow(fake.Window{PID: 10, Bounds: rect(500, 500, 300, 300)})
	w2 := h.b.AddWindow(fake.Window{PID: 10, Bounds: rect(600, 600, 300, 300)})
	h.state.Cache.Reconcile("1", layout.Snapshot{10: {
		{ID: w2, Bounds: layout.Placeholder},
		{ID: w1, Bounds: layout.Bounds{X: 1, Y: 2, Width: 30, Height: 40}},
	}}, nil)

	space, ok := h.state.Spaces.Current(ctx)
	require.True(t, ok)
	h.state.Spaces.MarkPending(space)

	rep := h.eng.RestoreIfPending(ctx)
	require.Equal(t, StatusApplied, rep.Status)
	require.Len(t, rep.Processes, 1)
	assert.Equal(t, 1, rep.Processes[0].Placeholders)
	assert.Equal(t, 1, rep.Processes[0].Written)

	assert.Equal(t, rect(1, 2, 30, 40), h.b.Bounds(w1))
	assert.Equal(t, rect(600, 600, 300, 300), h.b.Bounds(w2))
	for _, w := range h.b.Writes() {
		assert.Positive(t, w.Bounds.Width*w.Bounds.Height, "zero-area bounds written")
	}
}

func TestRestoreIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 1, Options{})

	w := h.b.AddWindow(fake.Window{PID: 10, Bounds: rect(0, 0, 800, 600)})
	h.eng.RestoreIfPending(ctx)
	h.replug(ctx, 2)
	h.b.Move(w, rect(1920, 0, 800, 600))

	first := h.replug(ctx, 1)
	require.Equal(t, StatusApplied, first.Status)
	writes := len(h.b.Writes())
	after := h.b.Bounds(w)

	second := h.eng.RestoreIfPending(ctx)
	assert.Equal(t, StatusNotPending, second.Status)
	assert.Len(t, h.b.Writes(), writes)
	assert.Equal(t, after, h.b.Bounds(w))
}

func TestRestoreContinuesAfterRejectedWrite(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 1, Options{})

	w1 := h.b.AddWindow(fake.Window{PID: 10, Bounds: rect(0, 0, 800, 600)})
	w2 := h.b.AddWindow(fake.Window{PID: 10, Bounds: rect(20, 20, 800, 600)})
	h.eng.RestoreIfPending(ctx)
	h.replug(ctx, 2)
	h.b.Move(w1, rect(1920, 0, 800, 600))
	h.b.Move(w2, rect(1940, 20, 800, 600))
	h.b.SetRejectMoves(w2, true)

	rep := h.replug(ctx, 1)
	require.Equal(t, StatusApplied, rep.Status)
	require.Len(t, rep.Processes, 1)
	assert.Equal(t, ProcessApplied, rep.Processes[0].Status)
	assert.Equal(t, 1, rep.Processes[0].Failed)
	assert.Equal(t, 1, rep.Processes[0].Written)
	assert.Equal(t, rect(0, 0, 800, 600), h.b.Bounds(w1))
	assert.Equal(t, rect(1940, 20, 800, 600), h.b.Bounds(w2))
}

func TestRestoreOnlyTouchesCurrentSpace(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 1, Options{})

	here := h.b.AddWindow(fake.Window{PID: 10, Bounds: rect(0, 0, 800, 600), Space: 0})
	there := h.b.AddWindow(fake.Window{PID: 10, Bounds: rect(40, 40, 800, 600), Space: 1})
	h.eng.RestoreIfPending(ctx)

	h.replug(ctx, 2)
	h.b.Move(here, rect(1920, 0, 800, 600))
	h.b.Move(there, rect(1960, 40, 800, 600))

	rep := h.replug(ctx, 1)
	require.Equal(t, StatusApplied, rep.Status)
	assert.Equal(t, rect(0, 0, 800, 600), h.b.Bounds(here))
	assert.Equal(t, rect(1960, 40, 800, 600), h.b.Bounds(there))

	h.b.SwitchSpace(1)
	rep = h.eng.RestoreIfPending(ctx)
	assert.Equal(t, StatusNotPending, rep.Status, "desktop 1 was never registered before the change")

	h.b.SwitchSpace(0)
	h.replug(ctx, 2)
	h.b.SwitchSpace(1)
	h.eng.RestoreIfPending(ctx)
	h.b.SwitchSpace(0)
	h.b.SetDisplays(1)
	h.eng.OnArrangementChanged(ctx, "1")
	h.b.SwitchSpace(1)
	rep = h.eng.RestoreIfPending(ctx)
	require.Equal(t, StatusApplied, rep.Status)
	assert.Equal(t, rect(40, 40, 800, 600), h.b.Bounds(there))
}

func TestRestoreNoCacheMarksVisited(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 1, Options{})
	h.b.AddWindow(fake.Window{PID: 10, Bounds: rect(0, 0, 800, 600)})

	space, ok := h.state.Spaces.Current(ctx)
	require.True(t, ok)
	h.state.Spaces.MarkPending(space)

	rep := h.eng.RestoreIfPending(ctx)
	assert.Equal(t, StatusNoCache, rep.Status)
	assert.Equal(t, spaces.Visited, h.state.Spaces.State(space))
	assert.Empty(t, h.b.Writes())
}

func TestRestoreSpaceUnavailable(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 1, Options{})
	h.b.RefuseMarkers(0, true)

	rep := h.eng.RestoreIfPending(ctx)
	assert.Equal(t, StatusSpaceUnavailable, rep.Status)
	assert.Zero(t, h.state.Spaces.Len())
}

func TestDryRunWritesNothing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 1, Options{DryRun: true})

	w := h.b.AddWindow(fake.Window{PID: 10, Bounds: rect(0, 0, 800, 600)})
	h.eng.RestoreIfPending(ctx)
	h.replug(ctx, 2)
	h.b.Move(w, rect(1920, 0, 800, 600))

	rep := h.replug(ctx, 1)
	require.Equal(t, StatusApplied, rep.Status)
	assert.True(t, rep.DryRun)
	assert.Equal(t, 1, rep.Written())
	assert.Empty(t, h.b.Writes())
	assert.Equal(t, rect(1920, 0, 800, 600), h.b.Bounds(w))
}

func TestForceRestoreReappliesVisitedSpace(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 1, Options{})

	w := h.b.AddWindow(fake.Window{PID: 10, Bounds: rect(0, 0, 800, 600)})
	h.eng.RestoreIfPending(ctx)
	h.replug(ctx, 2)
	h.replug(ctx, 1)

	h.b.Move(w, rect(5, 5, 100, 100))
	require.Equal(t, StatusNotPending, h.eng.RestoreIfPending(ctx).Status)

	rep := h.eng.ForceRestore(ctx)
	require.Equal(t, StatusApplied, rep.Status)
	assert.Equal(t, rect(0, 0, 800, 600), h.b.Bounds(w))
}

func TestRefreshTrustsOnlyVisitedWindows(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 1, Options{})

	w := h.b.AddWindow(fake.Window{PID: 10, Bounds: rect(0, 0, 800, 600)})
	h.eng.RestoreIfPending(ctx)
	h.eng.Refresh(ctx)

	h.b.Move(w, rect(10, 10, 800, 600))
	h.eng.Refresh(ctx)
	snap, ok := h.state.Cache.Get("1")
	require.True(t, ok)
	assert.Equal(t, layout.Bounds{Width: 800, Height: 600}, snap[10][0].Bounds, "unvisited window keeps cached bounds")

	// A restore pass marks every window on the desktop visited.
	h.replug(ctx, 2)
	h.replug(ctx, 1)
	h.b.Move(w, rect(10, 10, 800, 600))
	h.eng.Refresh(ctx)
	snap, _ = h.state.Cache.Get("1")
	assert.Equal(t, layout.Bounds{X: 10, Y: 10, Width: 800, Height: 600}, snap[10][0].Bounds)
}

func TestCaptureOrderingAndExclusions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 1, Options{})

	a := h.b.AddWindow(fake.Window{PID: 1, Bounds: rect(0, 0, 10, 10)})
	h.b.AddWindow(fake.Window{PID: 2, Bounds: rect(0, 0, 10, 10)})
	c := h.b.AddWindow(fake.Window{PID: 1, Bounds: rect(0, 0, 10, 10), Space: 3})
	h.b.AddWindow(fake.Window{PID: 3, Bounds: rect(0, 0, 10, 10), Layer: platform.LayerPanel})
	h.b.AddWindow(fake.Window{PID: selfPID, Bounds: rect(0, 0, 10, 10)})
	h.b.AddWindow(fake.Window{PID: 0, Bounds: rect(0, 0, 10, 10)})
	_, ok := h.state.Spaces.Current(ctx)
	require.True(t, ok)

	snap, err := h.eng.Capture(ctx)
	require.NoError(t, err)
	assert.Equal(t, []layout.ProcessID{1, 2}, snap.Processes())
	assert.Equal(t, []platform.WindowID{c, a}, ids(snap[1]))

	h.b.Focus(a)
	snap, err = h.eng.Capture(ctx)
	require.NoError(t, err)
	assert.Equal(t, []platform.WindowID{a, c}, ids(snap[1]))
}

func TestCaptureFailureYieldsEmptySnapshot(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 1, Options{})
	h.b.AddWindow(fake.Window{PID: 1, Bounds: rect(0, 0, 10, 10)})
	h.b.FailEnumeration = true

	snap, err := h.eng.Capture(ctx)
	require.ErrorIs(t, err, platform.ErrNoWindows)
	assert.Empty(t, snap)

	rep := h.eng.OnArrangementChanged(ctx, "2")
	assert.Zero(t, rep.Processes)
	assert.Equal(t, layout.Signature("2"), h.state.Signature)
}

func TestRefreshWithFailedCaptureKeepsCache(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 1, Options{})
	h.b.AddWindow(fake.Window{PID: 1, Bounds: rect(0, 0, 10, 10)})
	h.eng.Refresh(ctx)
	before := h.state.Cache.Entries()

	h.b.FailEnumeration = true
	rep := h.eng.Refresh(ctx)

	assert.Zero(t, rep.Processes)
	assert.Equal(t, before, h.state.Cache.Entries())
}

func TestArrangementChangeMarksSpacesPendingAndClearsVisited(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 1, Options{})
	h.b.AddWindow(fake.Window{PID: 1, Bounds: rect(0, 0, 10, 10)})

	space, _ := h.state.Spaces.Current(ctx)
	h.state.Visited.Add(12345)

	rep := h.eng.OnArrangementChanged(ctx, "2")
	assert.Equal(t, layout.Signature("1"), rep.From)
	assert.Equal(t, layout.Signature("2"), rep.To)
	assert.Equal(t, spaces.PendingRestore, h.state.Spaces.State(space))
	assert.Empty(t, h.state.Visited)
	assert.Equal(t, []layout.Signature{"1"}, h.state.Cache.Signatures())
}

func ids(seq []layout.WindowPosition) []platform.WindowID {
	out := make([]platform.WindowID, len(seq))
	for i, wp := range seq {
		out[i] = wp.ID
	}
	return out
}

func TestObserveTrustsSettledSpacesOnly(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 1, Options{})

	w := h.b.AddWindow(fake.Window{PID: 10, Bounds: rect(0, 0, 800, 600)})
	space, ok := h.eng.Observe(ctx)
	require.True(t, ok)
	assert.True(t, h.state.Visited.Has(w))
	assert.Equal(t, spaces.Visited, h.state.Spaces.State(space))

	h.eng.Refresh(ctx)
	h.b.Move(w, rect(30, 30, 800, 600))
	h.eng.Refresh(ctx)
	snap, _ := h.state.Cache.Get("1")
	assert.Equal(t, layout.Bounds{X: 30, Y: 30, Width: 800, Height: 600}, snap[10][0].Bounds)

	h.b.SetDisplays(2)
	h.eng.OnArrangementChanged(ctx, "2")
	_, ok = h.eng.Observe(ctx)
	assert.False(t, ok, "pending space is not trusted before its restore")
	assert.Empty(t, h.state.Visited)
}
