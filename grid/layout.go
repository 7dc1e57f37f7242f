package grid

import (
	"context"
	"fmt"
	"log"
)

// ColumnOrder returns the current display order.
func (g *Engine) ColumnOrder() []ColumnKey {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]ColumnKey, len(g.columnOrder))
	copy(out, g.columnOrder)
	return out
}

// OrderedColumns returns the column definitions in display order.
func (g *Engine) OrderedColumns() []Column {
	g.mu.Lock()
	defer g.mu.Unlock()
	byKey := map[ColumnKey]Column{}
	for _, c := range g.columns {
		byKey[c.Key] = c
	}
	out := make([]Column, 0, len(g.columnOrder))
	for _, key := range g.columnOrder {
		out = append(out, byKey[key])
	}
	return out
}

// MoveColumn moves a column to a new display position and persists the
// order.
func (g *Engine) MoveColumn(ctx context.Context, key ColumnKey, position int) error {
	g.mu.Lock()
	from := -1
	for i, k := range g.columnOrder {
		if k == key {
			from = i
			break
		}
	}
	if from == -1 {
		g.mu.Unlock()
		return fmt.Errorf("unknown column %q", key)
	}
	if position < 0 {
		position = 0
	}
	if position >= len(g.columnOrder) {
		position = len(g.columnOrder) - 1
	}
	order := append([]ColumnKey{}, g.columnOrder...)
	order = append(order[:from], order[from+1:]...)
	order = append(order[:position], append([]ColumnKey{key}, order[position:]...)...)
	g.columnOrder = order
	g.mu.Unlock()

	g.persistColumnOrder(ctx)
	return nil
}

// SetColumnWidth resizes a column, clamped to its [min,max] range. Widths
// are session state; they are not persisted.
func (g *Engine) SetColumnWidth(key ColumnKey, width int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, c := range g.columns {
		if c.Key == key {
			g.columns[i].Width = clampWidth(c, width)
			return
		}
	}
}

// LoadLayout restores the persisted column order. Missing or malformed
// state falls back to the default order; unrecognized keys are dropped
// and absent ones appended in default position.
func (g *Engine) LoadLayout(ctx context.Context) {
	if g.cfg.Store == nil {
		return
	}
	var stored []ColumnKey
	found, err := g.cfg.Store.Get(ctx, columnOrderKey, &stored)
	if err != nil {
		log.Printf("[grid] failed to load column order: %v", err)
		return
	}
	if !found {
		return
	}

	valid := map[ColumnKey]bool{}
	for _, key := range DefaultColumnOrder() {
		valid[key] = true
	}
	var order []ColumnKey
	seen := map[ColumnKey]bool{}
	for _, key := range stored {
		if valid[key] && !seen[key] {
			seen[key] = true
			order = append(order, key)
		}
	}
	for _, key := range DefaultColumnOrder() {
		if !seen[key] {
			order = append(order, key)
		}
	}

	g.mu.Lock()
	g.columnOrder = order
	g.mu.Unlock()
}

func (g *Engine) persistColumnOrder(ctx context.Context) {
	if g.cfg.Store == nil {
		return
	}
	if err := g.cfg.Store.Set(ctx, columnOrderKey, g.ColumnOrder()); err != nil {
		log.Printf("[grid] failed to persist column order: %v", err)
	}
}
