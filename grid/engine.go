// Package grid is the history table's state machine: one canonical event
// list plus derived filter/sort/page state, per-row edit drafts, row
// selection, and column layout. All derived views are pure computations
// over the canonical list; only saves and refreshes talk to the network.
package grid

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	domain "github.com/kenrgriggs/whatskennethdoing/domain/activity"
	"github.com/kenrgriggs/whatskennethdoing/localstore"
)

// PageSizes are the selectable page sizes.
var PageSizes = []int{10, 25, 50, 100}

// DefaultPageSize is the initial page size.
const DefaultPageSize = 10

// columnOrderKey is the localstore key holding the persisted column
// display order.
const columnOrderKey = "grid:column-order"

// AutoRefreshIntervals are the selectable auto-refresh settings; zero
// means off.
var AutoRefreshIntervals = []time.Duration{0, time.Minute, 3 * time.Minute, 5 * time.Minute}

// Fetcher loads the canonical event list.
type Fetcher interface {
	FetchEvents(ctx context.Context, limit int) ([]domain.Event, error)
}

// Updater submits a row patch and returns the authoritative saved event.
type Updater interface {
	UpdateEvent(ctx context.Context, eventID string, patch Patch) (domain.Event, error)
}

// Config wires an Engine.
type Config struct {
	Fetcher    Fetcher
	Updater    Updater
	Store      localstore.Store // column layout persistence; may be nil
	Location   *time.Location
	Now        func() time.Time
	FetchLimit int
}

// Engine holds all grid state and applies user actions as explicit
// transitions, so invariants like "one row editing at a time" live in one
// place.
type Engine struct {
	mu  sync.Mutex
	cfg Config
	sf  singleflight.Group

	canonical []domain.Event
	drafts    map[string]Draft
	editing   string
	selected  map[string]bool

	filters  map[ColumnKey]string
	sortKey  ColumnKey
	sortAsc  bool
	page     int
	pageSize int

	columns     []Column
	columnOrder []ColumnKey

	refreshStop chan struct{}
}

// NewEngine creates a grid engine with default view state.
func NewEngine(cfg Config) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.FetchLimit <= 0 {
		cfg.FetchLimit = 300
	}
	return &Engine{
		cfg:         cfg,
		drafts:      map[string]Draft{},
		selected:    map[string]bool{},
		filters:     map[ColumnKey]string{},
		sortKey:     ColStart,
		sortAsc:     false,
		page:        1,
		pageSize:    DefaultPageSize,
		columns:     Columns(),
		columnOrder: DefaultColumnOrder(),
	}
}

// Row is one rendered row of the current page.
type Row struct {
	Event    domain.Event
	Draft    Draft
	Editing  bool
	Selected bool
}

// Meta describes the derived page.
type Meta struct {
	Page       int
	PageSize   int
	TotalRows  int
	TotalPages int
}

// Rows derives the visible page: filter, sort, clamp page, slice.
func (g *Engine) Rows() ([]Row, Meta) {
	g.mu.Lock()
	defer g.mu.Unlock()

	visible := g.visibleLocked()
	total := len(visible)
	totalPages := (total + g.pageSize - 1) / g.pageSize
	if totalPages < 1 {
		totalPages = 1
	}
	page := g.page
	if page > totalPages {
		page = totalPages
	}
	if page < 1 {
		page = 1
	}
	g.page = page

	start := (page - 1) * g.pageSize
	end := start + g.pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	rows := make([]Row, 0, end-start)
	for _, e := range visible[start:end] {
		rows = append(rows, Row{
			Event:    e,
			Draft:    g.drafts[e.ID],
			Editing:  g.editing == e.ID,
			Selected: g.selected[e.ID],
		})
	}
	return rows, Meta{Page: page, PageSize: g.pageSize, TotalRows: total, TotalPages: totalPages}
}

// visibleLocked returns the filtered, sorted event list.
func (g *Engine) visibleLocked() []domain.Event {
	now := g.cfg.Now()
	var visible []domain.Event
	for _, e := range g.canonical {
		if g.matchesLocked(e, now) {
			visible = append(visible, e)
		}
	}

	key, asc := g.sortKey, g.sortAsc
	sort.SliceStable(visible, func(i, j int) bool {
		// Comparison is on the rendered display text for every column,
		// duration included.
		a := strings.ToLower(DisplayValue(visible[i], key, now, g.cfg.Location))
		b := strings.ToLower(DisplayValue(visible[j], key, now, g.cfg.Location))
		if asc {
			return a < b
		}
		return a > b
	})
	return visible
}

// matchesLocked reports whether a row passes every active column filter.
// Needles match case-insensitively against the rendered display value;
// the status filter also matches the raw enum value.
func (g *Engine) matchesLocked(e domain.Event, now time.Time) bool {
	for key, needle := range g.filters {
		needle = strings.ToLower(strings.TrimSpace(needle))
		if needle == "" {
			continue
		}
		display := strings.ToLower(DisplayValue(e, key, now, g.cfg.Location))
		if strings.Contains(display, needle) {
			continue
		}
		if key == ColStatus && strings.Contains(strings.ToLower(string(e.Status)), needle) {
			continue
		}
		return false
	}
	return true
}

// SetFilter sets one column's filter needle (empty clears it) and resets
// to page 1.
func (g *Engine) SetFilter(key ColumnKey, needle string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if strings.TrimSpace(needle) == "" {
		delete(g.filters, key)
	} else {
		g.filters[key] = needle
	}
	g.page = 1
}

// SetFilters replaces the whole filter set (used when applying a saved
// view) and resets to page 1.
func (g *Engine) SetFilters(filters map[ColumnKey]string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.filters = map[ColumnKey]string{}
	for key, needle := range filters {
		if strings.TrimSpace(needle) != "" {
			g.filters[key] = needle
		}
	}
	g.page = 1
}

// Filters returns a copy of the active filter set.
func (g *Engine) Filters() map[ColumnKey]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[ColumnKey]string, len(g.filters))
	for key, needle := range g.filters {
		out[key] = needle
	}
	return out
}

// ToggleSort activates the column for sorting; clicking the active column
// flips direction, a new column starts ascending. Resets to page 1.
func (g *Engine) ToggleSort(key ColumnKey) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sortKey == key {
		g.sortAsc = !g.sortAsc
	} else {
		g.sortKey = key
		g.sortAsc = true
	}
	g.page = 1
}

// Sort returns the active sort column and direction.
func (g *Engine) Sort() (ColumnKey, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sortKey, g.sortAsc
}

// SetPage moves to the requested page; Rows clamps it to the valid range.
func (g *Engine) SetPage(page int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if page < 1 {
		page = 1
	}
	g.page = page
}

// SetPageSize switches the page size and resets to page 1. Sizes outside
// the option set are ignored.
func (g *Engine) SetPageSize(size int) {
	for _, allowed := range PageSizes {
		if size == allowed {
			g.mu.Lock()
			g.pageSize = size
			g.page = 1
			g.mu.Unlock()
			return
		}
	}
}

// ErrNoSuchRow is returned for operations on an id missing from the
// canonical list.
var ErrNoSuchRow = errors.New("row not found")

// BeginEdit puts a row into edit mode. If another row is already editing
// and has changes, it is saved first; a failed save keeps that row in
// edit mode and surfaces the error.
func (g *Engine) BeginEdit(ctx context.Context, id string) error {
	g.mu.Lock()
	if _, ok := g.eventLocked(id); !ok {
		g.mu.Unlock()
		return ErrNoSuchRow
	}
	prev := g.editing
	g.mu.Unlock()

	if prev != "" && prev != id {
		if err := g.saveIfDirty(ctx, prev); err != nil {
			return err
		}
	}

	g.mu.Lock()
	g.editing = id
	g.mu.Unlock()
	return nil
}

// SetDraftField updates one field of a row's edit buffer.
func (g *Engine) SetDraftField(id string, key ColumnKey, value string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	draft, ok := g.drafts[id]
	if !ok {
		return ErrNoSuchRow
	}
	draft.SetField(key, value)
	g.drafts[id] = draft
	return nil
}

// Draft returns the current edit buffer for a row.
func (g *Engine) Draft(id string) (Draft, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	draft, ok := g.drafts[id]
	return draft, ok
}

// Editing returns the id of the row in edit mode, or "".
func (g *Engine) Editing() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.editing
}

// CommitEdit saves the row currently in edit mode if it has changes, then
// leaves edit mode. A clean row closes without a network call; a failed
// save keeps the row editing with its draft intact.
func (g *Engine) CommitEdit(ctx context.Context) error {
	g.mu.Lock()
	id := g.editing
	g.mu.Unlock()
	if id == "" {
		return nil
	}
	return g.saveIfDirty(ctx, id)
}

// ClickAway is the outside-click handler: identical to CommitEdit.
func (g *Engine) ClickAway(ctx context.Context) error {
	return g.CommitEdit(ctx)
}

// saveIfDirty submits the row's full draft when it differs from
// canonical. On success the server's returned event becomes the new
// canonical value and the draft is reseeded from it.
func (g *Engine) saveIfDirty(ctx context.Context, id string) error {
	g.mu.Lock()
	event, ok := g.eventLocked(id)
	if !ok {
		g.editing = ""
		g.mu.Unlock()
		return ErrNoSuchRow
	}
	draft := g.drafts[id]
	if !draft.dirty(event, g.cfg.Location) {
		if g.editing == id {
			g.editing = ""
		}
		g.mu.Unlock()
		return nil
	}
	g.mu.Unlock()

	saved, err := g.cfg.Updater.UpdateEvent(ctx, id, patchOf(draft))
	if err != nil {
		return fmt.Errorf("failed to save row: %w", err)
	}

	g.mu.Lock()
	g.replaceCanonicalLocked(saved)
	if g.editing == id {
		g.editing = ""
	}
	g.mu.Unlock()
	return nil
}

// ToggleSelect flips a row's selection. Selection is orthogonal to edit
// mode.
func (g *Engine) ToggleSelect(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.eventLocked(id); !ok {
		return ErrNoSuchRow
	}
	if g.selected[id] {
		delete(g.selected, id)
	} else {
		g.selected[id] = true
	}
	return nil
}

// SelectedIDs returns the selected row ids in canonical order.
func (g *Engine) SelectedIDs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var ids []string
	for _, e := range g.canonical {
		if g.selected[e.ID] {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

// ClearSelection deselects every row.
func (g *Engine) ClearSelection() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.selected = map[string]bool{}
}

// SetEvents replaces the canonical list directly (initial load or tests).
func (g *Engine) SetEvents(events []domain.Event) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mergeEventsLocked(events)
}

// eventLocked finds a canonical event by id.
func (g *Engine) eventLocked(id string) (domain.Event, bool) {
	for _, e := range g.canonical {
		if e.ID == id {
			return e, true
		}
	}
	return domain.Event{}, false
}

// replaceCanonicalLocked swaps one event's canonical value for the
// server-returned one and reseeds its draft.
func (g *Engine) replaceCanonicalLocked(saved domain.Event) {
	for i, e := range g.canonical {
		if e.ID == saved.ID {
			g.canonical[i] = saved
			break
		}
	}
	g.drafts[saved.ID] = draftOf(saved, g.cfg.Location)
}

// mergeEventsLocked installs a fresh canonical list: drafts are reseeded
// (except for a row mid-edit), and selection plus drafts are pruned for
// rows that disappeared.
func (g *Engine) mergeEventsLocked(events []domain.Event) {
	g.canonical = events
	present := make(map[string]bool, len(events))
	for _, e := range events {
		present[e.ID] = true
		if e.ID == g.editing {
			continue
		}
		g.drafts[e.ID] = draftOf(e, g.cfg.Location)
	}
	for id := range g.drafts {
		if !present[id] {
			delete(g.drafts, id)
		}
	}
	for id := range g.selected {
		if !present[id] {
			delete(g.selected, id)
		}
	}
	if g.editing != "" && !present[g.editing] {
		g.editing = ""
	}
}
