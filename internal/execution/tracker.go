package execution

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantmesh/edgecore/internal/rolling"
)

// EventType distinguishes plan creation from fill reports.
type EventType string

const (
	EventPlan EventType = "PLAN"
	EventFill EventType = "FILL"
)

const (
	trackerCapacity  = 5000
	trackerQueueSize = 256
)

// Event is one entry in the execution audit trail.
type Event struct {
	Type        EventType `json:"type"`
	PlanID      string    `json:"plan_id"`
	SliceID     string    `json:"slice_id,omitempty"`
	Symbol      string    `json:"symbol"`
	Strategy    Strategy  `json:"strategy,omitempty"`
	SizeUSD     float64   `json:"size_usd"`
	FilledUSD   float64   `json:"filled_usd,omitempty"`
	SlippageBps float64   `json:"slippage_bps,omitempty"`
	GatePassed  bool      `json:"gate_passed"`
	Timestamp   time.Time `json:"timestamp"`
}

// Tracker keeps a bounded in-memory audit trail of plans and fills and, when
// given a directory, appends each event as a JSON line to a daily file. File
// IO runs on a background goroutine so recording never blocks planning.
type Tracker struct {
	mu     sync.Mutex
	events *rolling.Ring[Event]

	dir    string
	queue  chan Event
	done   chan struct{}
	closed sync.Once
}

// NewTracker creates a tracker. Empty dir disables file persistence.
func NewTracker(dir string) *Tracker {
	t := &Tracker{
		events: rolling.NewRing[Event](trackerCapacity),
		dir:    dir,
		queue:  make(chan Event, trackerQueueSize),
		done:   make(chan struct{}),
	}
	go t.flushLoop()
	return t
}

// RecordPlan appends a PLAN event for the generated plan.
func (t *Tracker) RecordPlan(plan *Plan) {
	t.record(Event{
		Type:       EventPlan,
		PlanID:     plan.ID,
		Symbol:     plan.Symbol,
		Strategy:   plan.Strategy,
		SizeUSD:    plan.TotalSizeUSD,
		GatePassed: plan.GatePassed,
		Timestamp:  time.Now(),
	})
}

// RecordFill appends a FILL event for one executed slice.
func (t *Tracker) RecordFill(planID, sliceID, symbol string, filledUSD, slippageBps float64) {
	t.record(Event{
		Type:        EventFill,
		PlanID:      planID,
		SliceID:     sliceID,
		Symbol:      symbol,
		FilledUSD:   filledUSD,
		SlippageBps: slippageBps,
		Timestamp:   time.Now(),
	})
}

// Events returns a copy of the retained trail, oldest first.
func (t *Tracker) Events() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.events.Values()
}

// Close stops the flush goroutine. Queued events already accepted are
// drained before it returns.
func (t *Tracker) Close() {
	t.closed.Do(func() {
		close(t.queue)
		<-t.done
	})
}

func (t *Tracker) record(ev Event) {
	t.mu.Lock()
	t.events.Push(ev)
	t.mu.Unlock()

	if t.dir == "" {
		return
	}
	select {
	case t.queue <- ev:
	default:
		// Trail on disk is best-effort; the in-memory ring stays complete.
		log.Warn().Str("plan_id", ev.PlanID).Msg("execution trail queue full, dropping file write")
	}
}

func (t *Tracker) flushLoop() {
	defer close(t.done)
	for ev := range t.queue {
		if err := t.appendToFile(ev); err != nil {
			log.Error().Err(err).Msg("execution trail write failed")
		}
	}
}

func (t *Tracker) appendToFile(ev Event) error {
	path := filepath.Join(t.dir, fmt.Sprintf("plans-%s.log", ev.Timestamp.UTC().Format("20060102")))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	line, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	_, err = f.Write(line)
	return err
}
