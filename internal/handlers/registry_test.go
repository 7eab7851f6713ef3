package handlers

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/story-runtime/pkg/actions"
	"github.com/jwebster45206/story-runtime/pkg/conditionals"
	"github.com/jwebster45206/story-runtime/pkg/engine"
	"github.com/jwebster45206/story-runtime/pkg/inventory"
	"github.com/jwebster45206/story-runtime/pkg/saves"
	"github.com/jwebster45206/story-runtime/pkg/storage"
	"github.com/jwebster45206/story-runtime/pkg/story"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testCatalog() *inventory.Catalog {
	return inventory.NewCatalog([]inventory.CatalogItem{
		{ID: "lantern", Name: "Lantern", Type: "tool"},
		{ID: "potion", Name: "Potion", Type: "consumable"},
	})
}

// testGraph is a small lighthouse story. "cellar" points at a node that does
// not exist.
func testGraph() *story.Graph {
	lantern := []conditionals.Condition{{Type: conditionals.HasItem, ItemID: "lantern"}}
	return &story.Graph{
		Title: "The Lighthouse",
		Nodes: map[string]*story.Node{
			"start": {
				ID:   "start",
				Text: "The keeper's door is ajar.",
				Choices: []story.Choice{
					{Label: "climb", Target: "stairs", Conditions: lantern},
					{Label: "look around", Target: "shed"},
					{Label: "cellar", Target: "cellar"},
				},
			},
			"shed": {
				ID:      "shed",
				Title:   "Shed",
				Text:    "A lantern hangs on a nail.",
				Actions: []actions.Action{{Type: actions.AddItem, ItemID: "lantern"}},
				Choices: []story.Choice{{Label: "back", Target: "start"}},
			},
			"stairs": {
				ID:      "stairs",
				Title:   "Stairs",
				Text:    "The steps spiral up.",
				Image:   "stairs.png",
				Choices: []story.Choice{{Label: "up", Target: "lamp"}},
			},
			"lamp": {ID: "lamp", Text: "The great lamp is dark."},
		},
	}
}

// testFactory builds engines that share one store, each session under its
// own key prefix
func testFactory(store storage.Storage) EngineFactory {
	graph := testGraph()
	catalog := testCatalog()
	return func(id uuid.UUID) *engine.Engine {
		return engine.New(graph,
			engine.WithSessionID(id),
			engine.WithCatalog(catalog),
			engine.WithStore(store, saves.DefaultKeys("test:"+id.String())),
			engine.WithDebounce(time.Millisecond),
			engine.WithLogger(testLogger()),
		)
	}
}

func TestRegistry_OpenNew(t *testing.T) {
	r := NewRegistry(testFactory(storage.NewMockStorage()), testLogger())

	s, restored := r.Open(uuid.Nil)
	require.NotNil(t, s)
	assert.False(t, restored)
	assert.NotEqual(t, uuid.Nil, s.ID())
	assert.Equal(t, 1, r.Len())

	require.NoError(t, s.Do(func(e *engine.Engine) error {
		assert.Equal(t, s.ID().String(), e.SessionID())
		assert.Equal(t, "start", e.NodeID())
		return nil
	}))

	got, ok := r.Get(s.ID())
	assert.True(t, ok)
	assert.Same(t, s, got)

	again, restored := r.Open(s.ID())
	assert.Same(t, s, again)
	assert.False(t, restored)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_ReopenRestoresProgress(t *testing.T) {
	store := storage.NewMockStorage()
	r := NewRegistry(testFactory(store), testLogger())

	s, _ := r.Open(uuid.Nil)
	require.NoError(t, s.Do(func(e *engine.Engine) error {
		require.True(t, e.Choose(1))
		return nil
	}))
	id := s.ID()

	assert.True(t, r.Close(id))
	assert.False(t, r.Close(id))
	_, ok := r.Get(id)
	assert.False(t, ok)

	s, restored := r.Open(id)
	assert.True(t, restored)
	require.NoError(t, s.Do(func(e *engine.Engine) error {
		assert.Equal(t, "shed", e.NodeID())
		assert.True(t, e.HasItem("lantern"))
		return nil
	}))

	// Another session has its own progress
	other, restored := r.Open(uuid.New())
	assert.False(t, restored)
	require.NoError(t, other.Do(func(e *engine.Engine) error {
		assert.Equal(t, "start", e.NodeID())
		return nil
	}))
}

func TestRegistry_SweepAndCloseAll(t *testing.T) {
	r := NewRegistry(testFactory(storage.NewMockStorage()), testLogger())

	stale, _ := r.Open(uuid.Nil)
	fresh, _ := r.Open(uuid.Nil)
	stale.mu.Lock()
	stale.lastUsed = time.Now().Add(-time.Hour)
	stale.mu.Unlock()

	assert.Equal(t, 1, r.Sweep(time.Minute))
	_, ok := r.Get(stale.ID())
	assert.False(t, ok)
	_, ok = r.Get(fresh.ID())
	assert.True(t, ok)

	assert.Equal(t, 0, r.Sweep(time.Minute))

	r.CloseAll()
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_ClosedSessionRefusesWork(t *testing.T) {
	r := NewRegistry(testFactory(storage.NewMockStorage()), testLogger())
	s, _ := r.Open(uuid.Nil)
	id := s.ID()

	require.True(t, r.Close(id))

	ran := false
	err := s.Do(func(e *engine.Engine) error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.False(t, ran)

	reopened, _ := r.Open(id)
	assert.NotSame(t, s, reopened)
	assert.ErrorIs(t, s.Do(func(e *engine.Engine) error { return nil }), ErrSessionClosed)
	assert.NoError(t, reopened.Do(func(e *engine.Engine) error { return nil }))

	// A request that looked the session up before it was closed gets a 404
	h := NewSessionHandler(r, testLogger())
	rec := httptest.NewRecorder()
	h.writeView(rec, http.StatusOK, s, false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegistry_ReopenWaitsForClosingEngine(t *testing.T) {
	r := NewRegistry(testFactory(storage.NewMockStorage()), testLogger())
	s, _ := r.Open(uuid.Nil)
	id := s.ID()

	inDo := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = s.Do(func(e *engine.Engine) error {
			close(inDo)
			<-release
			return nil
		})
	}()
	<-inDo

	closed := make(chan bool, 1)
	go func() { closed <- r.Close(id) }()
	require.Eventually(t, func() bool {
		_, ok := r.Get(id)
		return !ok
	}, time.Second, time.Millisecond)

	reopened := make(chan *Session, 1)
	go func() {
		next, _ := r.Open(id)
		reopened <- next
	}()

	select {
	case <-reopened:
		t.Fatal("session reopened while its old engine was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	assert.True(t, <-closed)
	next := <-reopened
	assert.NotSame(t, s, next)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_SlowStartDoesNotBlockOthers(t *testing.T) {
	store := storage.NewMockStorage()
	base := testFactory(store)
	slowID := uuid.New()
	gate := make(chan struct{})
	var slowBuilds atomic.Int32

	r := NewRegistry(func(id uuid.UUID) *engine.Engine {
		if id == slowID {
			slowBuilds.Add(1)
			<-gate
		}
		return base(id)
	}, testLogger())

	live, _ := r.Open(uuid.Nil)

	var wg sync.WaitGroup
	results := make([]*Session, 2)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = r.Open(slowID)
		}()
	}
	require.Eventually(t, func() bool { return slowBuilds.Load() == 1 }, time.Second, time.Millisecond)

	done := make(chan struct{})
	go func() {
		defer close(done)
		got, ok := r.Get(live.ID())
		assert.True(t, ok)
		assert.Same(t, live, got)
		other, _ := r.Open(uuid.Nil)
		assert.NotNil(t, other)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("registry blocked while another session was starting")
	}

	close(gate)
	wg.Wait()
	assert.Equal(t, int32(1), slowBuilds.Load())
	assert.Same(t, results[0], results[1])
	assert.Equal(t, 3, r.Len())
}
