package grid

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/kenrgriggs/whatskennethdoing/domain/activity"
)

// BatchField names a field that may be applied to many rows at once.
type BatchField ColumnKey

const (
	BatchStatus   BatchField = BatchField(ColStatus)
	BatchCategory BatchField = BatchField(ColCategory)
	BatchProject  BatchField = BatchField(ColProject)
)

// BatchResult summarizes a batch edit. Failures are isolated per row: the
// rows that succeeded are merged and deselected, the rows that failed
// stay selected so the user can retry.
type BatchResult struct {
	Updated int
	Failed  int
	Errors  map[string]error // row id -> failure
}

// Message is the aggregate notice shown after a batch edit.
func (r BatchResult) Message() string {
	if r.Failed == 0 {
		return fmt.Sprintf("Updated %d row(s).", r.Updated)
	}
	return fmt.Sprintf("Updated %d row(s). %d row(s) failed.", r.Updated, r.Failed)
}

// ApplyBatchEdit applies one field value to every selected row via
// independent concurrent update calls. Each call submits the row's full
// draft with the batch field overridden.
func (g *Engine) ApplyBatchEdit(ctx context.Context, field BatchField, value string) (BatchResult, error) {
	switch field {
	case BatchStatus, BatchCategory, BatchProject:
	default:
		return BatchResult{}, fmt.Errorf("field %q does not support batch edit", field)
	}

	g.mu.Lock()
	var ids []string
	patches := map[string]Patch{}
	for _, e := range g.canonical {
		if !g.selected[e.ID] {
			continue
		}
		draft := g.drafts[e.ID]
		draft.SetField(ColumnKey(field), value)
		ids = append(ids, e.ID)
		patches[e.ID] = patchOf(draft)
	}
	g.mu.Unlock()

	if len(ids) == 0 {
		return BatchResult{}, nil
	}

	type outcome struct {
		id    string
		event domain.Event
		err   error
	}
	results := make(chan outcome, len(ids))

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string, patch Patch) {
			defer wg.Done()
			event, err := g.cfg.Updater.UpdateEvent(ctx, id, patch)
			results <- outcome{id: id, event: event, err: err}
		}(id, patches[id])
	}
	wg.Wait()
	close(results)

	// Responses arrive in any order; merge each one as it lands.
	res := BatchResult{Errors: map[string]error{}}
	g.mu.Lock()
	for out := range results {
		if out.err != nil {
			res.Failed++
			res.Errors[out.id] = out.err
			continue
		}
		res.Updated++
		g.replaceCanonicalLocked(out.event)
		delete(g.selected, out.id)
	}
	g.mu.Unlock()
	return res, nil
}
