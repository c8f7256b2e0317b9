package timegap

import (
	"sort"

	"github.com/Veraticus/pickpath/internal/model"
)

// Result is the outcome of estimating a whole batch.
type Result struct {
	Table *model.TimegapTable
	Items []string
	Trips int
}

// Universe returns the sorted distinct items of all valid rows.
func Universe(records []model.TripRecord) []string {
	seen := make(map[string]struct{})
	for _, r := range records {
		if !r.Valid() {
			continue
		}
		seen[r.Item] = struct{}{}
	}
	items := make([]string, 0, len(seen))
	for item := range seen {
		items = append(items, item)
	}
	sort.Strings(items)
	return items
}

// Estimate seeds, ingests and finalizes in one call.
func Estimate(records []model.TripRecord, opts Options) (*Result, error) {
	items := Universe(records)
	if len(items) == 0 {
		return nil, ErrNoValidRecords
	}

	e := New(items, opts)
	e.Ingest(records)

	return &Result{
		Table: e.Finalize(),
		Items: items,
		Trips: e.Trips(),
	}, nil
}
