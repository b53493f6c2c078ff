package layout

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pos(id WindowID, x, y, w, h int) WindowPosition {
	return WindowPosition{ID: id, Bounds: Bounds{X: x, Y: y, Width: w, Height: h}}
}

func requireCountsPreserved(t *testing.T, c *Cache) {
	t.Helper()
	lengths := map[ProcessID]int{}
	for sig, snap := range c.entries {
		for pid, seq := range snap {
			if n, ok := lengths[pid]; ok {
				require.Equalf(t, n, len(seq), "process %d under %q", pid, sig)
				continue
			}
			lengths[pid] = len(seq)
		}
	}
}

func TestReconcile_FirstCaptureAdoptsFreshForLiveArrangement(t *testing.T) {
	c := NewCache()
	fresh := Snapshot{100: {pos(1, 0, 0, 800, 600), pos(2, 50, 50, 640, 480)}}

	stats := c.Reconcile("1", fresh, nil)

	got, ok := c.Get("1")
	require.True(t, ok)
	assert.Equal(t, fresh[100], got[100])
	assert.Equal(t, 2, stats.Adopted)
	assert.Equal(t, 0, stats.Placeholders)
}

func TestReconcile_VisitedWindowsTakeFreshBounds(t *testing.T) {
	c := NewCache()
	c.Reconcile("1", Snapshot{7: {pos(1, 0, 0, 100, 100), pos(2, 10, 10, 100, 100)}}, nil)

	fresh := Snapshot{7: {pos(2, 20, 20, 200, 200), pos(1, 30, 30, 300, 300)}}
	c.Reconcile("1", fresh, NewWindowSet(1))

	got, _ := c.Get("1")
	assert.Equal(t, []WindowPosition{
		pos(2, 10, 10, 100, 100), // not visited, keeps cached bounds
		pos(1, 30, 30, 300, 300), // visited, fresh bounds
	}, got[7])
}

func TestReconcile_UnvisitedNewWindowBecomesPlaceholder(t *testing.T) {
	c := NewCache()
	c.Reconcile("1", Snapshot{7: {pos(1, 0, 0, 100, 100)}}, nil)

	c.Reconcile("1", Snapshot{7: {pos(3, 5, 5, 50, 50), pos(1, 9, 9, 90, 90)}}, NewWindowSet())

	got, _ := c.Get("1")
	assert.Equal(t, []WindowPosition{PlaceholderFor(3), pos(1, 0, 0, 100, 100)}, got[7])
}

func TestReconcile_HistoricalArrangementKeepsLengthWithPlaceholders(t *testing.T) {
	// Process has Wx@B1, Wy@B2 under arrangement "1". Under "2" only Wx was
	// ever seen. Reconciling must pad "2" to two slots, not drop Wy.
	c := NewCache()
	c.entries["1"] = Snapshot{9: {pos(10, 0, 0, 500, 400), pos(11, 600, 0, 500, 400)}}
	c.entries["2"] = Snapshot{9: {pos(10, 1920, 0, 500, 400)}}

	fresh := Snapshot{9: {pos(10, 1, 1, 1, 1), pos(11, 2, 2, 2, 2)}}
	stats := c.Reconcile("1", fresh, nil)

	two, _ := c.Get("2")
	assert.Equal(t, []WindowPosition{pos(10, 1920, 0, 500, 400), PlaceholderFor(11)}, two[9])
	assert.Equal(t, 1, stats.Placeholders)
	requireCountsPreserved(t, c)
}

func TestReconcile_HistoricalArrangementSkipsUnknownProcess(t *testing.T) {
	c := NewCache()
	c.entries["2"] = Snapshot{}

	c.Reconcile("1", Snapshot{5: {pos(1, 0, 0, 10, 10)}}, nil)

	two, _ := c.Get("2")
	_, ok := two[5]
	assert.False(t, ok)
	one, _ := c.Get("1")
	assert.Len(t, one[5], 1)
}

func TestReconcile_DropsExitedProcesses(t *testing.T) {
	c := NewCache()
	c.Reconcile("1", Snapshot{1: {pos(1, 0, 0, 10, 10)}, 2: {pos(2, 0, 0, 10, 10)}}, nil)

	c.Reconcile("1", Snapshot{1: {pos(1, 0, 0, 10, 10)}}, nil)

	got, _ := c.Get("1")
	assert.Equal(t, []ProcessID{1}, got.Processes())
}

func TestReconcile_UnvisitedWindowNeverOverwritten(t *testing.T) {
	c := NewCache()
	c.Reconcile("1", Snapshot{3: {pos(1, 10, 10, 100, 100), pos(2, 20, 20, 100, 100)}}, nil)

	for i := 0; i < 5; i++ {
		c.Reconcile("1", Snapshot{3: {pos(1, i, i, 7, 7), pos(2, i, i, 7, 7)}}, NewWindowSet(2))
	}

	got, _ := c.Get("1")
	assert.Equal(t, pos(1, 10, 10, 100, 100), got[3][0])
	assert.Equal(t, pos(2, 4, 4, 7, 7), got[3][1])
}

func TestRefreshLive_LeavesOtherArrangements(t *testing.T) {
	c := NewCache()
	c.Reconcile("1", Snapshot{1: {pos(1, 0, 0, 10, 10)}, 2: {pos(2, 5, 5, 10, 10)}}, nil)
	c.Reconcile("2", Snapshot{1: {pos(1, 0, 0, 10, 10)}, 2: {pos(2, 5, 5, 10, 10)}}, nil)
	before, _ := c.Get("1")

	stats := c.RefreshLive("2", Snapshot{1: {pos(1, 30, 30, 10, 10), pos(3, 0, 0, 20, 20)}}, NewWindowSet(1))

	after, _ := c.Get("1")
	assert.Equal(t, before, after)
	assert.Equal(t, 1, stats.Signatures)

	live, _ := c.Get("2")
	assert.Equal(t, []WindowPosition{pos(1, 30, 30, 10, 10), PlaceholderFor(3)}, live[1])
	assert.Equal(t, []WindowPosition{pos(2, 5, 5, 10, 10)}, live[2], "process absent from the capture is kept")
}

func TestRefreshLive_AdoptsNewProcess(t *testing.T) {
	c := NewCache()
	stats := c.RefreshLive("1", Snapshot{7: {pos(9, 1, 2, 3, 4)}}, nil)

	got, ok := c.Get("1")
	require.True(t, ok)
	assert.Equal(t, []WindowPosition{pos(9, 1, 2, 3, 4)}, got[7])
	assert.Equal(t, 1, stats.Adopted)
}

func TestReconcile_CountPreservationRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	c := NewCache()
	sigs := []Signature{"1", "2", "3"}

	for round := 0; round < 200; round++ {
		fresh := Snapshot{}
		for pid := ProcessID(1); pid <= 4; pid++ {
			if rng.Intn(4) == 0 {
				continue
			}
			n := rng.Intn(5)
			seq := make([]WindowPosition, 0, n)
			perm := rng.Perm(8)
			for i := 0; i < n; i++ {
				seq = append(seq, pos(WindowID(int(pid)*100+perm[i]), rng.Intn(100), rng.Intn(100), 1+rng.Intn(50), 1+rng.Intn(50)))
			}
			fresh[pid] = seq
		}

		visited := NewWindowSet()
		for id := range fresh.WindowIDs() {
			if rng.Intn(2) == 0 {
				visited.Add(id)
			}
		}

		c.Reconcile(sigs[rng.Intn(len(sigs))], fresh, visited)
		requireCountsPreserved(t, c)

		for _, sig := range c.Signatures() {
			snap, _ := c.Get(sig)
			for pid, seq := range snap {
				require.Len(t, seq, len(fresh[pid]))
				for i := range seq {
					require.Equal(t, fresh[pid][i].ID, seq[i].ID, "slot order follows fresh capture")
				}
			}
		}
	}
}

func TestCache_EnsureAndEntriesCopy(t *testing.T) {
	c := NewCache()
	c.Ensure("2")
	c.Ensure("2")
	require.Equal(t, 1, c.Len())

	c.Reconcile("2", Snapshot{1: {pos(1, 0, 0, 10, 10)}}, nil)
	entries := c.Entries()
	entries["2"][1][0].Bounds.X = 999

	got, _ := c.Get("2")
	assert.Equal(t, 0, got[1][0].Bounds.X)

	c.Reset()
	assert.Equal(t, 0, c.Len())
}
