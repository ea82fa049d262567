package market

import (
	"sync"
	"time"
)

// Store is the concurrency-safe per-symbol market state store.
//
// Locking model: an RWMutex protects the symbol index during first-touch entry
// creation; each entry carries its own mutex protecting merges and copy-out
// reads. No cross-symbol locking and no lock is ever held across I/O.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	now     func() time.Time
}

type entry struct {
	mu    sync.Mutex
	state State
}

// NewStore creates an empty state store.
func NewStore() *Store {
	return &Store{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Update merges the provided fields into the symbol's state. Fields left nil
// are untouched. The timestamp is stamped to the current wall clock when the
// caller does not supply one. The entry is created on first reference and
// lives for the process lifetime.
func (s *Store) Update(symbol string, u FieldUpdates) {
	e := s.entryFor(symbol)

	e.mu.Lock()
	defer e.mu.Unlock()

	st := &e.state
	if u.Price != nil {
		st.Price = *u.Price
	}
	if u.MarkPrice != nil {
		st.MarkPrice = *u.MarkPrice
	}
	if u.FundingRate != nil {
		st.FundingRate = *u.FundingRate
	}
	if u.OpenInterest != nil {
		st.OpenInterest = *u.OpenInterest
	}
	if u.OIDelta1m != nil {
		st.OIDelta1m = *u.OIDelta1m
	}
	if u.OIDelta5m != nil {
		st.OIDelta5m = *u.OIDelta5m
	}
	if u.PriceDelta1m != nil {
		st.PriceDelta1m = *u.PriceDelta1m
	}
	if u.CVDFutures != nil {
		st.CVDFutures = *u.CVDFutures
	}
	if u.CVDSpot != nil {
		st.CVDSpot = *u.CVDSpot
	}
	if u.CVDDelta1m != nil {
		st.CVDDelta1m = *u.CVDDelta1m
	}
	if u.AggBuyVol1m != nil {
		st.AggBuyVol1m = *u.AggBuyVol1m
	}
	if u.AggSellVol1m != nil {
		st.AggSellVol1m = *u.AggSellVol1m
	}
	if u.Bids != nil {
		st.Bids = append([]BookLevel(nil), u.Bids...)
	}
	if u.Asks != nil {
		st.Asks = append([]BookLevel(nil), u.Asks...)
	}
	if u.RecentTrades != nil {
		st.RecentTrades = append([]Trade(nil), u.RecentTrades...)
	}
	if u.LiqLevels != nil {
		st.LiqLevels = append([]LiquidationLevel(nil), u.LiqLevels...)
	}
	if u.BookImbalance != nil {
		st.BookImbalance = *u.BookImbalance
	}
	if u.TimestampMs != nil {
		st.TimestampMs = *u.TimestampMs
	} else {
		st.TimestampMs = s.now().UnixMilli()
	}
}

// Get returns a deep, independent copy of the symbol's state. The second
// return value is false when the symbol has never been updated.
func (s *Store) Get(symbol string) (State, bool) {
	s.mu.RLock()
	e, ok := s.entries[symbol]
	s.mu.RUnlock()
	if !ok {
		return State{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.clone(), true
}

// Symbols returns the set of symbols seen so far.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.entries))
	for sym := range s.entries {
		out = append(out, sym)
	}
	return out
}

func (s *Store) entryFor(symbol string) *entry {
	s.mu.RLock()
	e, ok := s.entries[symbol]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.entries[symbol]; ok {
		return e
	}
	e = &entry{state: State{Symbol: symbol}}
	s.entries[symbol] = e
	return e
}
