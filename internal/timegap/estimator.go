// Package timegap learns pairwise item distances from recorded shopping trips.
//
// Each trip contributes one sample per adjacent pair of its items taken in name
// order, so a trip with n items yields n-1 samples. Samples pass through an
// outlier filter before they are appended to the pair's history, and Finalize
// collapses every history into its mean.
package timegap

import (
	"errors"
	"math"
	"sort"

	"github.com/Veraticus/pickpath/internal/model"
)

// ErrNoValidRecords is returned when a log contains no usable rows.
var ErrNoValidRecords = errors.New("no valid trip records")

// Options tunes the estimator.
type Options struct {
	// Sentinel seeds every pair and marks pairs never observed together.
	Sentinel float64
	// Tolerance is how far a sample may drift from the previous one before it counts as an outlier.
	Tolerance float64
	// CollapseAfter is the number of outliers after which recent samples are collapsed into their mean.
	CollapseAfter int
	// StickyThreshold keeps the outlier counter from resetting after a collapse,
	// so every later outlier collapses the history again.
	StickyThreshold bool
}

// DefaultOptions returns the estimator defaults.
func DefaultOptions() Options {
	return Options{
		Sentinel:      model.DefaultSentinel,
		Tolerance:     10,
		CollapseAfter: 3,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Sentinel <= 0 {
		o.Sentinel = d.Sentinel
	}
	if o.Tolerance < 0 {
		o.Tolerance = d.Tolerance
	}
	if o.CollapseAfter <= 0 {
		o.CollapseAfter = d.CollapseAfter
	}
	return o
}

// Estimator accumulates pair samples across a batch of trips.
type Estimator struct {
	history   map[model.Pair][]float64
	threshold map[model.Pair]int
	opts      Options
	trips     int
}

// New seeds every unordered pair of items with the sentinel.
func New(items []string, opts Options) *Estimator {
	opts = opts.withDefaults()
	e := &Estimator{
		history:   make(map[model.Pair][]float64),
		threshold: make(map[model.Pair]int),
		opts:      opts,
	}
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			if items[i] == items[j] {
				continue
			}
			p := model.NewPair(items[i], items[j])
			if _, ok := e.history[p]; ok {
				continue
			}
			e.history[p] = []float64{opts.Sentinel}
			e.threshold[p] = 0
		}
	}
	return e
}

// Ingest walks a log and records samples for every trip in it.
// It returns the number of trips found in this log.
func (e *Estimator) Ingest(records []model.TripRecord) int {
	trip := make(map[string]float64)
	trips := 0
	hasValid := false

	flush := func() {
		if hasValid {
			trips++
		}
		e.sampleTrip(trip)
		clear(trip)
		hasValid = false
	}

	for i, r := range records {
		if i > 0 && r.StartsTrip() {
			flush()
		}
		if !r.Valid() {
			continue
		}
		trip[r.Item] = r.Offset
		hasValid = true
	}
	if len(records) > 0 {
		flush()
	}

	e.trips += trips
	return trips
}

// sampleTrip records one sample per adjacent pair in name order.
func (e *Estimator) sampleTrip(trip map[string]float64) {
	if len(trip) < 2 {
		return
	}
	items := make([]string, 0, len(trip))
	for item := range trip {
		items = append(items, item)
	}
	sort.Strings(items)

	for i := 0; i < len(items)-1; i++ {
		a, b := items[i], items[i+1]
		e.record(model.NewPair(a, b), math.Abs(trip[a]-trip[b]))
	}
}

func (e *Estimator) record(p model.Pair, sample float64) {
	h, ok := e.history[p]
	if !ok || len(h) == 0 {
		e.history[p] = []float64{sample}
		return
	}
	e.history[p], e.threshold[p] = e.smooth(h, e.threshold[p], sample)
}

// smooth appends sample to history, collapsing recent samples into their mean
// once enough outliers have been seen.
func (e *Estimator) smooth(history []float64, counter int, sample float64) ([]float64, int) {
	last := history[len(history)-1]
	if math.Abs(sample-last) > e.opts.Tolerance {
		counter++
		if counter >= e.opts.CollapseAfter {
			start := len(history) - e.opts.CollapseAfter
			if start < 0 {
				start = 0
			}
			history = []float64{mean(history[start:])}
			if !e.opts.StickyThreshold {
				counter = 0
			}
		}
	}
	return append(history, sample), counter
}

// Trips returns the number of trips ingested so far.
func (e *Estimator) Trips() int {
	return e.trips
}

// History returns a copy of the recorded samples for a pair.
func (e *Estimator) History(a, b string) []float64 {
	h := e.history[model.NewPair(a, b)]
	out := make([]float64, len(h))
	copy(out, h)
	return out
}

// Threshold returns the current outlier counter for a pair.
func (e *Estimator) Threshold(a, b string) int {
	return e.threshold[model.NewPair(a, b)]
}

// Finalize drops the seed sample of every observed pair and averages the rest.
func (e *Estimator) Finalize() *model.TimegapTable {
	table := model.NewTimegapTable(e.opts.Sentinel)
	for p, h := range e.history {
		if len(h) == 0 {
			continue
		}
		if len(h) > 1 {
			h = h[1:]
		}
		table.Set(p.A, p.B, mean(h))
	}
	return table
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
