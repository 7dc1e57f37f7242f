// Package views manages named filter presets for the history grid. Views
// live in a key-value blob store (the browser local-storage stand-in);
// the implicit "all tasks" view is always available and never persisted.
package views

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/jaevor/go-nanoid"

	"github.com/kenrgriggs/whatskennethdoing/grid"
	"github.com/kenrgriggs/whatskennethdoing/localstore"
)

// AllTasksID identifies the sentinel unfiltered view.
const AllTasksID = "all"

// storeKey is the localstore key holding the persisted view list.
const storeKey = "grid:saved-views"

// queryParam is the URL query parameter carrying the active view id.
const queryParam = "view"

// View is one named filter preset: one needle per column, empty meaning
// no filter on that column.
type View struct {
	ID      string                    `json:"id"`
	Name    string                    `json:"name"`
	Filters map[grid.ColumnKey]string `json:"filters"`
}

// newViewID generates short URL-friendly ids.
var newViewID = mustNanoID()

func mustNanoID() func() string {
	gen, err := nanoid.Standard(12)
	if err != nil {
		panic(err)
	}
	return gen
}

// Manager holds the saved view list, the active selection, and the
// unsaved-filters indicator.
type Manager struct {
	mu       sync.Mutex
	store    localstore.Store
	views    []View
	activeID string
	unsaved  bool
}

// NewManager creates a Manager and loads any persisted views. Malformed
// persisted state is treated as absence; entries without an id or name
// are filtered out.
func NewManager(ctx context.Context, store localstore.Store) *Manager {
	m := &Manager{store: store, activeID: AllTasksID}

	var stored []View
	if found, err := store.Get(ctx, storeKey, &stored); err == nil && found {
		for _, v := range stored {
			if v.ID == "" || strings.TrimSpace(v.Name) == "" {
				continue
			}
			if v.Filters == nil {
				v.Filters = map[grid.ColumnKey]string{}
			}
			m.views = append(m.views, v)
		}
	}
	return m
}

// Views returns the saved views in order.
func (m *Manager) Views() []View {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]View, len(m.views))
	copy(out, m.views)
	return out
}

// ActiveID returns the selected view id (AllTasksID when unfiltered).
func (m *Manager) ActiveID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeID
}

// Unsaved reports whether the live filters match no saved view. Purely
// informational.
func (m *Manager) Unsaved() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unsaved
}

// Select activates a view and returns its filters. Selecting an unknown
// id falls back to the all-tasks view.
func (m *Manager) Select(id string) map[grid.ColumnKey]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unsaved = false
	if v, ok := m.findLocked(id); ok {
		m.activeID = id
		return copyFilters(v.Filters)
	}
	m.activeID = AllTasksID
	return map[grid.ColumnKey]string{}
}

// Add saves the current filter set under name. If an identical filter set
// is already saved, that existing view is selected instead of creating a
// duplicate. Name collisions are suffixed " 2", " 3", ... until unique.
func (m *Manager) Add(ctx context.Context, name string, filters map[grid.ColumnKey]string) (View, error) {
	m.mu.Lock()
	for _, v := range m.views {
		if sameFilters(v.Filters, filters) {
			m.activeID = v.ID
			m.unsaved = false
			m.mu.Unlock()
			return v, nil
		}
	}

	view := View{
		ID:      newViewID(),
		Name:    m.uniqueNameLocked(name, ""),
		Filters: copyFilters(filters),
	}
	m.views = append(m.views, view)
	m.activeID = view.ID
	m.unsaved = false
	m.mu.Unlock()

	return view, m.persist(ctx)
}

// Rename changes a view's name, applying the same collision suffixing
// while excluding the view itself from the collision set.
func (m *Manager) Rename(ctx context.Context, id, name string) (View, error) {
	m.mu.Lock()
	idx := -1
	for i, v := range m.views {
		if v.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		m.mu.Unlock()
		return View{}, fmt.Errorf("view %q not found", id)
	}
	m.views[idx].Name = m.uniqueNameLocked(name, id)
	renamed := m.views[idx]
	m.mu.Unlock()

	return renamed, m.persist(ctx)
}

// Duplicate copies a view under a suffixed name and selects the copy.
func (m *Manager) Duplicate(ctx context.Context, id string) (View, error) {
	m.mu.Lock()
	src, ok := m.findLocked(id)
	if !ok {
		m.mu.Unlock()
		return View{}, fmt.Errorf("view %q not found", id)
	}
	copyView := View{
		ID:      newViewID(),
		Name:    m.uniqueNameLocked(src.Name, ""),
		Filters: copyFilters(src.Filters),
	}
	m.views = append(m.views, copyView)
	m.activeID = copyView.ID
	m.unsaved = false
	m.mu.Unlock()

	return copyView, m.persist(ctx)
}

// Delete removes a view. Deleting the active view resets the selection to
// the all-tasks sentinel; the returned filters are the ones the grid
// should now apply (nil when the active view did not change).
func (m *Manager) Delete(ctx context.Context, id string) (map[grid.ColumnKey]string, error) {
	m.mu.Lock()
	kept := m.views[:0]
	removed := false
	for _, v := range m.views {
		if v.ID == id {
			removed = true
			continue
		}
		kept = append(kept, v)
	}
	m.views = kept
	if !removed {
		m.mu.Unlock()
		return nil, fmt.Errorf("view %q not found", id)
	}

	var filters map[grid.ColumnKey]string
	if m.activeID == id {
		m.activeID = AllTasksID
		m.unsaved = false
		filters = map[grid.ColumnKey]string{}
	}
	m.mu.Unlock()

	return filters, m.persist(ctx)
}

// SyncFilters records the grid's live filter state. When the filters
// match a saved view (or the empty all-tasks state) that view becomes
// active; otherwise the unsaved-filters indicator turns on.
func (m *Manager) SyncFilters(filters map[grid.ColumnKey]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.views {
		if sameFilters(v.Filters, filters) {
			m.activeID = v.ID
			m.unsaved = false
			return
		}
	}
	if sameFilters(map[grid.ColumnKey]string{}, filters) {
		m.activeID = AllTasksID
		m.unsaved = false
		return
	}
	m.unsaved = true
}

// FromQuery restores the view referenced by a URL's query parameter and
// returns its filters. An absent or unknown id selects the all-tasks
// view.
func (m *Manager) FromQuery(values url.Values) map[grid.ColumnKey]string {
	return m.Select(values.Get(queryParam))
}

// Query returns the query parameters reflecting the active view, for
// shareable (same-browser) links. The all-tasks sentinel adds nothing.
func (m *Manager) Query() url.Values {
	values := url.Values{}
	if id := m.ActiveID(); id != AllTasksID {
		values.Set(queryParam, id)
	}
	return values
}

// uniqueNameLocked appends " 2", " 3", ... until the name collides with
// no saved view other than excludeID.
func (m *Manager) uniqueNameLocked(name, excludeID string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "View"
	}
	taken := func(candidate string) bool {
		for _, v := range m.views {
			if v.ID != excludeID && strings.EqualFold(v.Name, candidate) {
				return true
			}
		}
		return false
	}
	if !taken(name) {
		return name
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s %d", name, n)
		if !taken(candidate) {
			return candidate
		}
	}
}

func (m *Manager) findLocked(id string) (View, bool) {
	for _, v := range m.views {
		if v.ID == id {
			return v, true
		}
	}
	return View{}, false
}

func (m *Manager) persist(ctx context.Context) error {
	m.mu.Lock()
	stored := make([]View, len(m.views))
	copy(stored, m.views)
	m.mu.Unlock()
	if err := m.store.Set(ctx, storeKey, stored); err != nil {
		return fmt.Errorf("failed to persist views: %w", err)
	}
	return nil
}

// sameFilters compares two filter sets treating empty needles and absent
// keys as equal.
func sameFilters(a, b map[grid.ColumnKey]string) bool {
	keys := map[grid.ColumnKey]bool{}
	for k := range a {
		keys[k] = true
	}
	for k := range b {
		keys[k] = true
	}
	for k := range keys {
		if strings.TrimSpace(a[k]) != strings.TrimSpace(b[k]) {
			return false
		}
	}
	return true
}

func copyFilters(filters map[grid.ColumnKey]string) map[grid.ColumnKey]string {
	out := make(map[grid.ColumnKey]string, len(filters))
	for k, v := range filters {
		if strings.TrimSpace(v) != "" {
			out[k] = v
		}
	}
	return out
}
