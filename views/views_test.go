package views

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kenrgriggs/whatskennethdoing/grid"
	"github.com/kenrgriggs/whatskennethdoing/localstore"
)

func filters(pairs ...string) map[grid.ColumnKey]string {
	out := map[grid.ColumnKey]string{}
	for i := 0; i+1 < len(pairs); i += 2 {
		out[grid.ColumnKey(pairs[i])] = pairs[i+1]
	}
	return out
}

func TestAdd_NameCollisionSuffixing(t *testing.T) {
	m := NewManager(context.Background(), localstore.NewMemoryStore())
	ctx := context.Background()

	first, err := m.Add(ctx, "Focus", filters("category", "focus"))
	require.NoError(t, err)
	assert.Equal(t, "Focus", first.Name)

	second, err := m.Add(ctx, "Focus", filters("category", "deep"))
	require.NoError(t, err)
	assert.Equal(t, "Focus 2", second.Name)

	third, err := m.Add(ctx, "focus", filters("category", "other"))
	require.NoError(t, err)
	assert.Equal(t, "focus 3", third.Name, "collision check ignores case")
}

func TestAdd_IdenticalFiltersDedup(t *testing.T) {
	m := NewManager(context.Background(), localstore.NewMemoryStore())
	ctx := context.Background()

	first, err := m.Add(ctx, "Focus", filters("category", "focus"))
	require.NoError(t, err)

	// Same filter set modulo empty needles selects the existing view.
	dup, err := m.Add(ctx, "Other name", filters("category", "focus", "title", "  "))
	require.NoError(t, err)
	assert.Equal(t, first.ID, dup.ID)
	assert.Equal(t, first.ID, m.ActiveID())
	assert.Len(t, m.Views(), 1)
}

func TestSelect_UnknownFallsBackToAllTasks(t *testing.T) {
	m := NewManager(context.Background(), localstore.NewMemoryStore())

	got := m.Select("does-not-exist")
	assert.Empty(t, got)
	assert.Equal(t, AllTasksID, m.ActiveID())
}

func TestDelete_ActiveViewResets(t *testing.T) {
	m := NewManager(context.Background(), localstore.NewMemoryStore())
	ctx := context.Background()

	v, err := m.Add(ctx, "Focus", filters("category", "focus"))
	require.NoError(t, err)
	require.Equal(t, v.ID, m.ActiveID())

	applied, err := m.Delete(ctx, v.ID)
	require.NoError(t, err)
	assert.NotNil(t, applied, "grid must be told to clear its filters")
	assert.Empty(t, applied)
	assert.Equal(t, AllTasksID, m.ActiveID())
}

func TestDelete_InactiveViewKeepsSelection(t *testing.T) {
	m := NewManager(context.Background(), localstore.NewMemoryStore())
	ctx := context.Background()

	keep, err := m.Add(ctx, "Keep", filters("category", "a"))
	require.NoError(t, err)
	doomed, err := m.Add(ctx, "Doomed", filters("category", "b"))
	require.NoError(t, err)
	m.Select(keep.ID)

	applied, err := m.Delete(ctx, doomed.ID)
	require.NoError(t, err)
	assert.Nil(t, applied, "active view unchanged, nothing to apply")
	assert.Equal(t, keep.ID, m.ActiveID())

	_, err = m.Delete(ctx, "missing")
	assert.Error(t, err)
}

func TestRename(t *testing.T) {
	m := NewManager(context.Background(), localstore.NewMemoryStore())
	ctx := context.Background()

	a, err := m.Add(ctx, "Alpha", filters("category", "a"))
	require.NoError(t, err)
	_, err = m.Add(ctx, "Beta", filters("category", "b"))
	require.NoError(t, err)

	// Renaming onto a taken name gets suffixed; renaming to its own name
	// does not.
	renamed, err := m.Rename(ctx, a.ID, "Beta")
	require.NoError(t, err)
	assert.Equal(t, "Beta 2", renamed.Name)

	same, err := m.Rename(ctx, a.ID, "Beta 2")
	require.NoError(t, err)
	assert.Equal(t, "Beta 2", same.Name)
}

func TestDuplicate(t *testing.T) {
	m := NewManager(context.Background(), localstore.NewMemoryStore())
	ctx := context.Background()

	src, err := m.Add(ctx, "Focus", filters("category", "focus"))
	require.NoError(t, err)

	dup, err := m.Duplicate(ctx, src.ID)
	require.NoError(t, err)
	assert.NotEqual(t, src.ID, dup.ID)
	assert.Equal(t, "Focus 2", dup.Name)
	assert.Equal(t, src.Filters, dup.Filters)
	assert.Equal(t, dup.ID, m.ActiveID())
}

func TestSyncFilters_UnsavedIndicator(t *testing.T) {
	m := NewManager(context.Background(), localstore.NewMemoryStore())
	ctx := context.Background()

	v, err := m.Add(ctx, "Focus", filters("category", "focus"))
	require.NoError(t, err)
	require.False(t, m.Unsaved())

	m.SyncFilters(filters("category", "focus", "title", "standup"))
	assert.True(t, m.Unsaved(), "edited filters match no saved view")

	m.SyncFilters(filters("category", "focus"))
	assert.False(t, m.Unsaved())
	assert.Equal(t, v.ID, m.ActiveID(), "matching filters reselect the view")

	m.SyncFilters(nil)
	assert.False(t, m.Unsaved())
	assert.Equal(t, AllTasksID, m.ActiveID(), "empty filters are the all-tasks view")
}

func TestPersistenceAcrossManagers(t *testing.T) {
	store := localstore.NewMemoryStore()
	ctx := context.Background()

	m := NewManager(ctx, store)
	v, err := m.Add(ctx, "Focus", filters("category", "focus"))
	require.NoError(t, err)

	reloaded := NewManager(ctx, store)
	views := reloaded.Views()
	require.Len(t, views, 1)
	assert.Equal(t, v.ID, views[0].ID)
	assert.Equal(t, "focus", views[0].Filters[grid.ColCategory])
}

func TestNewManager_MalformedStateIgnored(t *testing.T) {
	store := localstore.NewMemoryStore()
	store.SetRaw("grid:saved-views", []byte("noise"))

	m := NewManager(context.Background(), store)
	assert.Empty(t, m.Views())
	assert.Equal(t, AllTasksID, m.ActiveID())
}

func TestNewManager_FiltersInvalidEntries(t *testing.T) {
	store := localstore.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "grid:saved-views", []View{
		{ID: "", Name: "no id"},
		{ID: "ok-1", Name: "   "},
		{ID: "ok-2", Name: "Valid"},
	}))

	m := NewManager(ctx, store)
	views := m.Views()
	require.Len(t, views, 1)
	assert.Equal(t, "ok-2", views[0].ID)
	assert.NotNil(t, views[0].Filters)
}

func TestQueryRoundTrip(t *testing.T) {
	m := NewManager(context.Background(), localstore.NewMemoryStore())
	ctx := context.Background()

	v, err := m.Add(ctx, "Focus", filters("category", "focus"))
	require.NoError(t, err)

	values := m.Query()
	assert.Equal(t, v.ID, values.Get("view"))

	// Another manager over the same data restores the view from the URL.
	restored := m.FromQuery(values)
	assert.Equal(t, v.ID, m.ActiveID())
	assert.Equal(t, "focus", restored[grid.ColCategory])

	m.Select(AllTasksID)
	assert.Empty(t, m.Query().Encode(), "all-tasks adds no query parameter")

	got := m.FromQuery(url.Values{})
	assert.Empty(t, got)
	assert.Equal(t, AllTasksID, m.ActiveID())
}
