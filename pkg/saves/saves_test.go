package saves

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/story-runtime/pkg/inventory"
	"github.com/jwebster45206/story-runtime/pkg/state"
	"github.com/jwebster45206/story-runtime/pkg/storage"
	"github.com/jwebster45206/story-runtime/pkg/story"
)

const testStory = `{
  "title": "The Cave",
  "nodes": {
    "start": {"title": "Cave Mouth", "text": "A dark opening yawns before you.", "choices": [{"label": "In", "target": "cave"}]},
    "cave": {"text": "It is warm inside.", "choices": [{"label": "Deeper", "target": "depths"}]},
    "depths": {"title": "The Depths", "text": "Water drips.", "choices": []},
    "library": {"text": "` + "%LONG%" + `", "choices": []}
  }
}`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testGraph(t *testing.T) *story.Graph {
	t.Helper()
	data := strings.Replace(testStory, "%LONG%", strings.Repeat("é", 150), 1)
	g, err := story.Parse([]byte(data), "json")
	require.NoError(t, err)
	return g
}

func testCatalog() *inventory.Catalog {
	return inventory.NewCatalog([]inventory.CatalogItem{
		{ID: "torch", Name: "Torch", Type: "tool"},
		{ID: "sword", Name: "Sword", Type: "weapon"},
	})
}

type fixture struct {
	store   *storage.MockStorage
	graph   *story.Graph
	manager *Manager
	clock   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: storage.NewMockStorage(),
		graph: testGraph(t),
		clock: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.manager = NewManager(f.store, f.graph, testCatalog(), DefaultKeys("test"), testLogger())
	f.manager.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

// engineAt builds a state positioned at nodeID having walked history.
func engineAt(nodeID string, history ...string) *state.EngineState {
	es := state.NewEngineState("start")
	es.NodeID = nodeID
	es.History = append(es.History, history...)
	es.PlayerState.Inventory.Add("torch", 1, testCatalog())
	es.PlayerState.Variables["gold"] = 5.0
	es.PlayerState.Flags["lit"] = true
	return es
}

func TestDefaultKeys(t *testing.T) {
	assert.Equal(t, Keys{
		Story:    "story:data",
		Progress: "story:progress",
		Saves:    "story:saves",
		Slots:    "story:slots",
	}, DefaultKeys(""))
	assert.Equal(t, "demo:slots", DefaultKeys("demo").Slots)
}

func TestProgress_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	es := engineAt("cave", "start")
	es.Forward = []string{"depths"}
	require.NoError(t, f.manager.SaveProgress(ctx, es))

	restored := state.NewEngineState("start")
	found, err := f.manager.LoadProgress(ctx, restored)
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, "cave", restored.NodeID)
	assert.Equal(t, []string{"start"}, restored.History)
	assert.Equal(t, []string{"depths"}, restored.Forward)
	assert.Equal(t, 5.0, restored.PlayerState.Variables["gold"])
	assert.True(t, restored.PlayerState.Flags["lit"])
	assert.True(t, restored.PlayerState.Inventory.Has("torch", 1))
	assert.NotEqual(t, es.SessionID, restored.SessionID, "session id is not persisted")
}

func TestLoadProgress_Ignored(t *testing.T) {
	ctx := context.Background()

	t.Run("no record", func(t *testing.T) {
		f := newFixture(t)
		found, err := f.manager.LoadProgress(ctx, state.NewEngineState("start"))
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("title mismatch", func(t *testing.T) {
		f := newFixture(t)
		f.store.PutRaw(f.manager.Keys().Progress, []byte(`{"title":"Other Story","nodeId":"cave"}`))
		es := state.NewEngineState("start")
		found, err := f.manager.LoadProgress(ctx, es)
		require.NoError(t, err)
		assert.False(t, found)
		assert.Equal(t, "start", es.NodeID)
	})

	t.Run("missing node", func(t *testing.T) {
		f := newFixture(t)
		f.store.PutRaw(f.manager.Keys().Progress, []byte(`{"title":"The Cave","nodeId":"collapsed"}`))
		es := state.NewEngineState("start")
		found, err := f.manager.LoadProgress(ctx, es)
		require.NoError(t, err)
		assert.False(t, found)
		assert.Equal(t, "start", es.NodeID)
	})

	t.Run("corrupt record", func(t *testing.T) {
		f := newFixture(t)
		f.store.PutRaw(f.manager.Keys().Progress, []byte(`{not json`))
		_, err := f.manager.LoadProgress(ctx, state.NewEngineState("start"))
		assert.Error(t, err)
	})
}

func TestLoadProgress_MigratesLegacyState(t *testing.T) {
	f := newFixture(t)
	f.store.PutRaw(f.manager.Keys().Progress, []byte(`{
		"title": "The Cave",
		"nodeId": "depths",
		"history": ["start", "removed", "cave"],
		"forward": ["gone"],
		"playerState": {"inventory": ["torch", "torch", "mystery"], "variables": {"hp": 3}}
	}`))

	es := state.NewEngineState("start")
	found, err := f.manager.LoadProgress(context.Background(), es)
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, []string{"start", "cave"}, es.History, "stack entries for removed nodes are dropped")
	assert.Empty(t, es.Forward)
	require.NotNil(t, es.Forward)

	inv := es.PlayerState.Inventory
	assert.Equal(t, inventory.DefaultMaxSlots, inv.MaxSlots)
	require.Len(t, inv.Items, 2)
	assert.Equal(t, "Torch", inv.Items[0].Name)
	assert.Equal(t, 2, inv.Items[0].Quantity)
	assert.Equal(t, inventory.UnknownItemName, inv.Items[1].Name)
	assert.NotNil(t, es.PlayerState.Flags)
	assert.Equal(t, 3.0, es.PlayerState.Variables["hp"])
}

func TestLoadProgress_PlayerStateShapes(t *testing.T) {
	tests := []struct {
		name        string
		playerState string
		wantSlots   int
		wantHP      any
	}{
		{"no inventory key", `{"variables": {"hp": 5}}`, inventory.DefaultMaxSlots, 5.0},
		{"null inventory", `{"inventory": null, "variables": {"hp": 5}}`, inventory.DefaultMaxSlots, 5.0},
		{"non-object inventory", `{"inventory": 7}`, inventory.DefaultMaxSlots, nil},
		{"empty player state", `{}`, inventory.DefaultMaxSlots, nil},
		{"null player state", `null`, 6, nil},
		{"explicit slot limit", `{"inventory": {"items": [], "maxSlots": 3}}`, 3, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.manager.WithMaxSlots(6)
			f.store.PutRaw(f.manager.Keys().Progress, []byte(`{
				"title": "The Cave",
				"nodeId": "cave",
				"history": ["start"],
				"playerState": `+tt.playerState+`
			}`))

			es := state.NewEngineState("start")
			found, err := f.manager.LoadProgress(context.Background(), es)
			require.NoError(t, err)
			require.True(t, found)

			inv := es.PlayerState.Inventory
			assert.Equal(t, tt.wantSlots, inv.MaxSlots)
			assert.NotNil(t, inv.Items)
			assert.Empty(t, inv.Items)
			assert.Equal(t, tt.wantHP, es.PlayerState.Variables["hp"])
		})
	}
}

func TestLoadGame_MissingInventoryKeepsSlotLimit(t *testing.T) {
	f := newFixture(t)
	var records []inventory.CatalogItem
	for i := 0; i < inventory.DefaultMaxSlots; i++ {
		records = append(records, inventory.CatalogItem{ID: fmt.Sprintf("gem_%d", i), Name: "Gem"})
	}
	gems := inventory.NewCatalog(records)
	f.store.PutRaw(f.manager.Keys().Saves, []byte(`{
		"old": {"title": "The Cave", "slotName": "old", "nodeId": "cave", "playerState": {"variables": {"hp": 2}}}
	}`))

	es := state.NewEngineState("start")
	require.NoError(t, f.manager.LoadSave(context.Background(), es, "old"))

	inv := &es.PlayerState.Inventory
	require.Equal(t, inventory.DefaultMaxSlots, inv.MaxSlots)
	for _, gem := range records {
		require.True(t, inv.Add(gem.ID, 1, gems))
	}
	assert.True(t, inv.IsFull())
	assert.False(t, inv.Add("torch", 1, testCatalog()))
}

func TestSaveProgress_StoreFailure(t *testing.T) {
	f := newFixture(t)
	f.store.SetSaveError(errors.New("disk full"))
	err := f.manager.SaveProgress(context.Background(), engineAt("cave"))
	assert.ErrorContains(t, err, "disk full")
}

func TestClearProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.manager.SaveProgress(ctx, engineAt("cave")))
	require.NoError(t, f.manager.ClearProgress(ctx))
	found, err := f.manager.LoadProgress(ctx, state.NewEngineState("start"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestBuildRecord_Metadata(t *testing.T) {
	f := newFixture(t)
	es := engineAt("depths", "start", "cave")
	started := f.clock
	es.PlayerState.StartedAt = &started
	f.advance(90 * time.Second)

	rec := f.manager.BuildRecord(es, "manual")
	assert.Equal(t, "The Cave", rec.Title)
	assert.Equal(t, "manual", rec.SlotName)
	assert.Equal(t, f.clock, rec.Timestamp)
	assert.Equal(t, "depths", rec.NodeID)
	assert.Equal(t, Metadata{
		GameDuration:   90_000,
		NodesVisited:   3,
		ChoicesMade:    2,
		InventoryCount: 1,
		LastNodeText:   "Water drips.",
		Version:        SaveVersion,
	}, rec.Metadata)

	es.History = nil
	es.Forward = nil
	rec = f.manager.BuildRecord(es, "x")
	assert.NotNil(t, rec.History)
	assert.NotNil(t, rec.Forward)
}

func TestBuildRecord_TruncatesNodeText(t *testing.T) {
	f := newFixture(t)
	rec := f.manager.BuildRecord(engineAt("library"), "x")
	assert.Equal(t, strings.Repeat("é", 100)+"...", rec.Metadata.LastNodeText)

	rec = f.manager.BuildRecord(engineAt("nowhere"), "x")
	assert.Empty(t, rec.Metadata.LastNodeText)
}

func TestBuildRecord_IsSnapshot(t *testing.T) {
	f := newFixture(t)
	es := engineAt("cave", "start")
	rec := f.manager.BuildRecord(es, "x")

	es.History[0] = "mutated"
	es.PlayerState.Variables["gold"] = 0.0
	assert.Equal(t, []string{"start"}, rec.History)
	assert.Equal(t, 5.0, rec.PlayerState.Variables["gold"])
}

func TestSaveGameAndLoad(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.SaveGame(ctx, engineAt("cave", "start"), "first")
	require.NoError(t, err)
	f.advance(time.Minute)
	_, err = f.manager.SaveGame(ctx, engineAt("depths", "start", "cave"), "second")
	require.NoError(t, err)

	list, err := f.manager.ListSaves(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].SlotName, "newest first")
	assert.Equal(t, "first", list[1].SlotName)

	es := state.NewEngineState("start")
	require.NoError(t, f.manager.LoadSave(ctx, es, "first"))
	assert.Equal(t, "cave", es.NodeID)
	assert.Equal(t, []string{"start"}, es.History)
	assert.Equal(t, 5.0, es.PlayerState.Variables["gold"])

	assert.ErrorIs(t, f.manager.LoadSave(ctx, es, "missing"), ErrNoRecord)

	require.NoError(t, f.manager.DeleteSave(ctx, "first"))
	assert.ErrorIs(t, f.manager.DeleteSave(ctx, "first"), ErrNoRecord)
	list, err = f.manager.ListSaves(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestLoadGame_TitleMismatchLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	rec := f.manager.BuildRecord(engineAt("depths", "start", "cave"), "x")
	rec.Title = "Another Story"

	es := engineAt("cave", "start")
	before := es.Clone()
	assert.ErrorIs(t, f.manager.LoadGame(es, rec), ErrTitleMismatch)
	assert.Equal(t, before, es)
}

func TestLoadGame_NilStacksAndPlayerState(t *testing.T) {
	f := newFixture(t)
	es := engineAt("cave", "start")
	require.NoError(t, f.manager.LoadGame(es, SaveRecord{Title: "The Cave", NodeID: "start"}))

	assert.Equal(t, "start", es.NodeID)
	assert.NotNil(t, es.History)
	assert.NotNil(t, es.Forward)
	require.NotNil(t, es.PlayerState)
	assert.True(t, es.PlayerState.Inventory.IsEmpty())
}

func TestSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	slot, err := f.manager.CreateSlot(ctx, engineAt("depths", "start", "cave"), "a", "")
	require.NoError(t, err)
	assert.Equal(t, "a", slot.Name, "name defaults to the id")
	assert.Equal(t, "The Depths", slot.Meta.CurrentLocation)
	assert.Equal(t, 75, slot.Meta.Progress)
	assert.Equal(t, SaveVersion, slot.Meta.Version)
	assert.Equal(t, slot.Meta.Created, slot.Meta.Modified)

	_, err = f.manager.CreateSlot(ctx, engineAt("cave"), "a", "again")
	assert.ErrorIs(t, err, ErrSlotExists)

	f.advance(time.Minute)
	updated, err := f.manager.SaveToSlot(ctx, engineAt("cave", "start"), "a")
	require.NoError(t, err)
	assert.Equal(t, "a", updated.Name)
	assert.Equal(t, slot.Meta.Created, updated.Meta.Created, "created is preserved")
	assert.Equal(t, f.clock, updated.Meta.Modified)
	assert.Equal(t, "cave", updated.Meta.CurrentLocation, "untitled nodes show their id")

	f.advance(time.Minute)
	created, err := f.manager.SaveToSlot(ctx, engineAt("start"), "b")
	require.NoError(t, err)
	assert.Equal(t, "b", created.Name, "saving to a missing slot creates it")

	es := state.NewEngineState("start")
	require.NoError(t, f.manager.LoadFromSlot(ctx, es, "a"))
	assert.Equal(t, "cave", es.NodeID)
	assert.ErrorIs(t, f.manager.LoadFromSlot(ctx, es, "zzz"), ErrSlotNotFound)

	f.advance(time.Minute)
	require.NoError(t, f.manager.RenameSlot(ctx, "a", "Before the depths"))
	info, err := f.manager.GetSlotInfo(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Before the depths", info.Name)
	assert.Equal(t, f.clock, info.Meta.Modified)
	assert.ErrorIs(t, f.manager.RenameSlot(ctx, "zzz", "x"), ErrSlotNotFound)

	_, err = f.manager.GetSlotInfo(ctx, "zzz")
	assert.ErrorIs(t, err, ErrSlotNotFound)

	require.NoError(t, f.manager.DeleteSlot(ctx, "b"))
	assert.ErrorIs(t, f.manager.DeleteSlot(ctx, "b"), ErrSlotNotFound)
}

func TestCopySlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.CreateSlot(ctx, engineAt("cave", "start"), "src", "Camp")
	require.NoError(t, err)
	_, err = f.manager.CreateSlot(ctx, engineAt("start"), "other", "Other")
	require.NoError(t, err)

	assert.ErrorIs(t, f.manager.CopySlot(ctx, "zzz", "dst", ""), ErrSlotNotFound)
	assert.ErrorIs(t, f.manager.CopySlot(ctx, "src", "other", ""), ErrSlotExists)

	f.advance(time.Hour)
	require.NoError(t, f.manager.CopySlot(ctx, "src", "dst", ""))

	info, err := f.manager.GetSlotInfo(ctx, "dst")
	require.NoError(t, err)
	assert.Equal(t, "Camp (copy)", info.Name)
	assert.Equal(t, f.clock, info.Meta.Created)
	assert.Equal(t, f.clock, info.Meta.Modified)

	// Restoring the copy and mutating it must not touch the source
	es := state.NewEngineState("start")
	require.NoError(t, f.manager.LoadFromSlot(ctx, es, "dst"))
	assert.Equal(t, "cave", es.NodeID)
	es.PlayerState.Variables["gold"] = 99.0
	require.NoError(t, f.manager.LoadFromSlot(ctx, es, "src"))
	assert.Equal(t, 5.0, es.PlayerState.Variables["gold"])
}

func TestListSlots_Order(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, id := range []string{"b", "a"} {
		_, err := f.manager.CreateSlot(ctx, engineAt("start"), id, "")
		require.NoError(t, err)
	}
	f.advance(time.Second)
	_, err := f.manager.CreateSlot(ctx, engineAt("start"), "c", "")
	require.NoError(t, err)

	list, err := f.manager.ListSlots(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(list))
	for _, s := range list {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestProgressPercent(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, 25, f.manager.Progress(1))
	assert.Equal(t, 100, f.manager.Progress(4))
	assert.Equal(t, 150, f.manager.Progress(6))

	empty := NewManager(storage.NewMockStorage(), &story.Graph{}, nil, DefaultKeys(""), nil)
	assert.Equal(t, 0, empty.Progress(3))
}

func TestNewSlotID(t *testing.T) {
	a, b := NewSlotID(), NewSlotID()
	assert.True(t, strings.HasPrefix(a, "slot_"))
	assert.NotEqual(t, a, b)
}
