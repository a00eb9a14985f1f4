package model

import (
	"sort"
	"sync"
	"time"
)

// Store is the process-lifetime registry of mutable per-train state:
// fused TrainStates, Schedules, and the live accumulated delay and
// status. It replaces the ambient global maps of earlier designs with
// an injectable object so components can be tested in isolation and
// multiple instances can coexist.
//
// Locking is per train. One train's fusion or reconciliation never
// blocks another's; two writers on the same train serialize. When the
// reconciler couples two trains it must lock both via WithSchedules,
// which acquires locks in train-ID order to avoid deadlock.
type Store struct {
	mu     sync.RWMutex
	trains map[string]*trainSlot
}

type trainSlot struct {
	mu       sync.Mutex
	state    *TrainState
	schedule *Schedule
	delay    time.Duration
	status   TrainStatus
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{trains: map[string]*trainSlot{}}
}

func (s *Store) slot(trainID string) *trainSlot {
	s.mu.RLock()
	sl, ok := s.trains[trainID]
	s.mu.RUnlock()
	if ok {
		return sl
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sl, ok = s.trains[trainID]; ok {
		return sl
	}
	sl = &trainSlot{}
	s.trains[trainID] = sl
	return sl
}

// SetState overwrites a train's fused state.
func (s *Store) SetState(st TrainState) {
	sl := s.slot(st.TrainID)
	sl.mu.Lock()
	sl.state = &st
	sl.mu.Unlock()
}

// State returns a copy of a train's fused state.
func (s *Store) State(trainID string) (TrainState, bool) {
	sl := s.slot(trainID)
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.state == nil {
		return TrainState{}, false
	}
	return *sl.state, true
}

// StatesSnapshot returns a consistent copy of every fused state, taken at
// one instant so a detection cycle never observes in-flight updates.
func (s *Store) StatesSnapshot() map[string]TrainState {
	s.mu.RLock()
	slots := make(map[string]*trainSlot, len(s.trains))
	for id, sl := range s.trains {
		slots[id] = sl
	}
	s.mu.RUnlock()

	out := make(map[string]TrainState, len(slots))
	for id, sl := range slots {
		sl.mu.Lock()
		if sl.state != nil {
			out[id] = *sl.state
		}
		sl.mu.Unlock()
	}
	return out
}

// SetSchedule replaces a train's schedule.
func (s *Store) SetSchedule(sched *Schedule) {
	sl := s.slot(sched.TrainID)
	sl.mu.Lock()
	sl.schedule = sched
	sl.mu.Unlock()
}

// Schedule returns a deep copy of a train's schedule.
func (s *Store) Schedule(trainID string) (*Schedule, bool) {
	sl := s.slot(trainID)
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.schedule == nil {
		return nil, false
	}
	return sl.schedule.Clone(), true
}

// SchedulesSnapshot returns deep copies of all schedules.
func (s *Store) SchedulesSnapshot() map[string]*Schedule {
	s.mu.RLock()
	slots := make(map[string]*trainSlot, len(s.trains))
	for id, sl := range s.trains {
		slots[id] = sl
	}
	s.mu.RUnlock()

	out := make(map[string]*Schedule, len(slots))
	for id, sl := range slots {
		sl.mu.Lock()
		if sl.schedule != nil {
			out[id] = sl.schedule.Clone()
		}
		sl.mu.Unlock()
	}
	return out
}

// WithSchedule runs fn with exclusive access to one train's schedule.
// fn receives the live schedule (nil if none is set) and may mutate it;
// a non-nil return value replaces the stored schedule.
func (s *Store) WithSchedule(trainID string, fn func(*Schedule) *Schedule) {
	sl := s.slot(trainID)
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if next := fn(sl.schedule); next != nil {
		sl.schedule = next
	}
}

// WithSchedules runs fn with exclusive access to several trains'
// schedules at once. Locks are taken in sorted train-ID order.
func (s *Store) WithSchedules(trainIDs []string, fn func(map[string]*Schedule)) {
	ids := make([]string, 0, len(trainIDs))
	seen := map[string]bool{}
	for _, id := range trainIDs {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	slots := make([]*trainSlot, len(ids))
	for i, id := range ids {
		slots[i] = s.slot(id)
		slots[i].mu.Lock()
	}
	defer func() {
		for i := len(slots) - 1; i >= 0; i-- {
			slots[i].mu.Unlock()
		}
	}()

	live := make(map[string]*Schedule, len(ids))
	for i, id := range ids {
		live[id] = slots[i].schedule
	}
	fn(live)
	for i, id := range ids {
		slots[i].schedule = live[id]
	}
}

// AddDelay accumulates live delay for a train and returns the new
// total. Negative amounts are allowed so an early recovery can unwind
// earlier delay, but the total never goes below zero.
func (s *Store) AddDelay(trainID string, amount time.Duration) time.Duration {
	sl := s.slot(trainID)
	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.delay += amount
	if sl.delay < 0 {
		sl.delay = 0
	}
	return sl.delay
}

// Delay returns a train's accumulated live delay.
func (s *Store) Delay(trainID string) time.Duration {
	sl := s.slot(trainID)
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.delay
}

// SetStatus records a train's live operational status.
func (s *Store) SetStatus(trainID string, status TrainStatus) {
	sl := s.slot(trainID)
	sl.mu.Lock()
	sl.status = status
	sl.mu.Unlock()
}

// Status returns a train's live operational status. A train with no
// recorded status reports StatusRegistered.
func (s *Store) Status(trainID string) TrainStatus {
	sl := s.slot(trainID)
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.status == "" {
		return StatusRegistered
	}
	return sl.status
}

// RemoveTrain drops all stored state for a retired train.
func (s *Store) RemoveTrain(trainID string) {
	s.mu.Lock()
	delete(s.trains, trainID)
	s.mu.Unlock()
}

// ActiveScheduleCount reports how many trains currently hold a schedule.
func (s *Store) ActiveScheduleCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, sl := range s.trains {
		sl.mu.Lock()
		if sl.schedule != nil {
			n++
		}
		sl.mu.Unlock()
	}
	return n
}

// LastUpdate returns the newest fused-state timestamp across all trains.
func (s *Store) LastUpdate() time.Time {
	var last time.Time
	for _, st := range s.StatesSnapshot() {
		if st.UpdatedAt.After(last) {
			last = st.UpdatedAt
		}
	}
	return last
}
