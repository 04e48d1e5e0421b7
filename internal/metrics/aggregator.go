// Package metrics turns a polled cloud metrics feed into bounded chart windows.
package metrics

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"worldpanel/internal/models"
	"worldpanel/internal/window"
)

// State is the lifecycle of a category window.
type State string

const (
	StateEmpty    State = "empty"
	StateSeeded   State = "seeded"
	StateUpdating State = "updating"
)

var categories = []Category{CategoryCPU, CategoryDisk, CategoryNetwork}

// Options tune an Aggregator.
type Options struct {
	Now      func() time.Time
	Location *time.Location
}

// Snapshot is a read-only view of the active category's window.
type Snapshot struct {
	Selection  Selection            `json:"selection"`
	Range      TimeRange            `json:"range"`
	Descriptor Descriptor           `json:"descriptor"`
	State      State                `json:"state"`
	Points     []models.MetricPoint `json:"points"`
	Error      string               `json:"error,omitempty"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

// Aggregator polls a Source for the selected category and keeps a sliding
// window of points per category. The first poll after a selection change
// seeds the window from the bulk response; later polls append only the
// newest point.
type Aggregator struct {
	source Source
	now    func() time.Time
	loc    *time.Location

	mu         sync.RWMutex
	sel        Selection
	rng        TimeRange
	windows    map[Category]*window.Window[models.MetricPoint]
	states     map[Category]State
	lastErr    string
	updatedAt  time.Time
	generation uint64

	reset   chan struct{}
	updates chan struct{}
}

// NewAggregator creates an aggregator starting at the given selection.
func NewAggregator(source Source, sel Selection, opts Options) (*Aggregator, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}
	rng, _ := LookupRange(sel.Range)

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	a := &Aggregator{
		source:  source,
		now:     now,
		loc:     loc,
		sel:     sel,
		rng:     rng,
		windows: make(map[Category]*window.Window[models.MetricPoint], len(categories)),
		states:  make(map[Category]State, len(categories)),
		reset:   make(chan struct{}, 1),
		updates: make(chan struct{}, 1),
	}
	for _, c := range categories {
		a.windows[c] = window.New[models.MetricPoint](rng.WindowSize)
		a.states[c] = StateEmpty
	}
	return a, nil
}

// Selection returns the current selection.
func (a *Aggregator) Selection() Selection {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sel
}

// SetSelection switches range, category or sub-metric. A new range empties
// every window; a new disk or network sub-metric empties that window. Any
// change restarts the poll cadence with an immediate poll.
func (a *Aggregator) SetSelection(sel Selection) error {
	if err := sel.Validate(); err != nil {
		return err
	}

	a.mu.Lock()
	old := a.sel
	if sel == old {
		a.mu.Unlock()
		return nil
	}
	if sel.Range != old.Range {
		rng, _ := LookupRange(sel.Range)
		a.rng = rng
		for _, c := range categories {
			a.clearLocked(c)
			a.windows[c].SetCap(rng.WindowSize)
		}
	} else {
		if sel.Disk != old.Disk {
			a.clearLocked(CategoryDisk)
		}
		if sel.Network != old.Network {
			a.clearLocked(CategoryNetwork)
		}
	}
	a.sel = sel
	a.lastErr = ""
	a.generation++
	a.mu.Unlock()

	select {
	case a.reset <- struct{}{}:
	default:
	}
	a.notify()
	return nil
}

func (a *Aggregator) clearLocked(c Category) {
	a.windows[c].Reset()
	a.states[c] = StateEmpty
}

// Updates signals after each applied poll, error or selection change.
func (a *Aggregator) Updates() <-chan struct{} {
	return a.updates
}

// Snapshot returns the active category's window.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	desc, _ := Describe(a.sel.Category, a.sel.SubMetric())
	return Snapshot{
		Selection:  a.sel,
		Range:      a.rng,
		Descriptor: desc,
		State:      a.states[a.sel.Category],
		Points:     a.windows[a.sel.Category].Snapshot(),
		Error:      a.lastErr,
		UpdatedAt:  a.updatedAt,
	}
}

// Poll performs one fetch for the active category and applies it to the
// window. A fetch failure leaves the window untouched and sets the error
// message shown to the user. Results of a fetch that raced a selection change
// are dropped.
func (a *Aggregator) Poll(ctx context.Context) error {
	a.mu.RLock()
	sel, rng, gen := a.sel, a.rng, a.generation
	a.mu.RUnlock()

	desc, err := Describe(sel.Category, sel.SubMetric())
	if err != nil {
		return err
	}

	end := a.now()
	series, err := a.source.Fetch(ctx, Query{
		Category: sel.Category,
		Start:    end.Add(-rng.Lookback()),
		End:      end,
		Step:     rng.Step,
	})
	if err != nil {
		a.mu.Lock()
		if gen == a.generation {
			a.lastErr = fmt.Sprintf("Failed to fetch %s metrics. Please check your API key and server ID.", sel.Category)
		}
		a.mu.Unlock()
		a.notify()
		return fmt.Errorf("fetch %s metrics: %w", sel.Category, err)
	}

	points := a.buildPoints(series, desc, rng)
	if len(points) == 0 {
		return nil
	}

	a.mu.Lock()
	if gen != a.generation {
		a.mu.Unlock()
		return nil
	}
	w := a.windows[sel.Category]
	if w.Len() == 0 {
		w.Replace(points)
		a.states[sel.Category] = StateSeeded
	} else {
		latest := points[len(points)-1]
		if last, ok := w.Last(); !ok || latest.Timestamp > last.Timestamp {
			w.Append(latest)
		}
		a.states[sel.Category] = StateUpdating
	}
	a.lastErr = ""
	a.updatedAt = end
	a.mu.Unlock()

	a.notify()
	return nil
}

// Run polls immediately and then every range step until ctx is cancelled.
// A selection change restarts the cadence with the new step.
func (a *Aggregator) Run(ctx context.Context) {
	for {
		select {
		case <-a.reset:
		default:
		}

		a.mu.RLock()
		interval := a.rng.Interval()
		a.mu.RUnlock()

		a.pollLogged(ctx)
		ticker := time.NewTicker(interval)

	wait:
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-a.reset:
				break wait
			case <-ticker.C:
				a.pollLogged(ctx)
			}
		}
		ticker.Stop()
	}
}

func (a *Aggregator) pollLogged(ctx context.Context) {
	if err := a.Poll(ctx); err != nil && ctx.Err() == nil {
		log.Printf("metrics poll failed: %v", err)
	}
}

// buildPoints aligns the descriptor's series on their most recent samples and
// converts them to chart points, keeping at most the range's window size.
func (a *Aggregator) buildPoints(series TimeSeries, desc Descriptor, rng TimeRange) []models.MetricPoint {
	columns := make([][]Sample, len(desc.Series))
	n := -1
	for i, s := range desc.Series {
		samples := series[s.Key]
		if len(samples) == 0 {
			return nil
		}
		columns[i] = samples
		if n < 0 || len(samples) < n {
			n = len(samples)
		}
	}
	if n > rng.WindowSize {
		n = rng.WindowSize
	}
	for i := range columns {
		columns[i] = columns[i][len(columns[i])-n:]
	}

	points := make([]models.MetricPoint, 0, n)
	for idx := 0; idx < n; idx++ {
		primary := columns[0][idx]
		values := make(map[string]float64, len(desc.Series))
		ok := true
		for i, s := range desc.Series {
			v, err := FormatValue(columns[i][idx].Value, desc.Unit)
			if err != nil {
				ok = false
				break
			}
			values[s.Field] = v
		}
		if !ok {
			continue
		}
		points = append(points, models.MetricPoint{
			Timestamp: primary.Millis(),
			Time:      FormatTimeLabel(primary.At().In(a.loc), rng),
			Values:    values,
		})
	}
	return points
}

func (a *Aggregator) notify() {
	select {
	case a.updates <- struct{}{}:
	default:
	}
}
