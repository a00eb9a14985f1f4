package engine

import (
	"context"
	"sync"

	"github.com/theoremus-urban-solutions/railopt/model"
)

// Broadcaster fans estimator and detector events out to subscribers:
// one aggregate state stream, one stream per train, and a conflict
// stream that also reaches the affected trains' subscribers. Slow
// subscribers lose events rather than stalling the pipeline.
type Broadcaster struct {
	mu        sync.RWMutex
	allStates []chan model.TrainState
	perTrain  map[string][]chan model.TrainState
	conflicts []chan model.Conflict
}

// NewBroadcaster returns an empty fan-out hub.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{perTrain: map[string][]chan model.TrainState{}}
}

// SubscribeStates returns a channel receiving every fused state update.
func (b *Broadcaster) SubscribeStates() <-chan model.TrainState {
	ch := make(chan model.TrainState, 64)
	b.mu.Lock()
	b.allStates = append(b.allStates, ch)
	b.mu.Unlock()
	return ch
}

// SubscribeTrain returns a channel receiving one train's state updates.
func (b *Broadcaster) SubscribeTrain(trainID string) <-chan model.TrainState {
	ch := make(chan model.TrainState, 16)
	b.mu.Lock()
	b.perTrain[trainID] = append(b.perTrain[trainID], ch)
	b.mu.Unlock()
	return ch
}

// SubscribeConflicts returns a channel receiving every detected conflict.
func (b *Broadcaster) SubscribeConflicts() <-chan model.Conflict {
	ch := make(chan model.Conflict, 16)
	b.mu.Lock()
	b.conflicts = append(b.conflicts, ch)
	b.mu.Unlock()
	return ch
}

// fanOut pumps the component channels to subscribers until ctx is done.
func (b *Broadcaster) fanOut(ctx context.Context, states <-chan model.TrainState, conflicts <-chan model.Conflict) {
	for {
		select {
		case <-ctx.Done():
			return
		case st := <-states:
			b.publishState(st)
		case c := <-conflicts:
			b.publishConflict(c)
		}
	}
}

func (b *Broadcaster) publishState(st model.TrainState) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.allStates {
		sendState(ch, st)
	}
	for _, ch := range b.perTrain[st.TrainID] {
		sendState(ch, st)
	}
}

func (b *Broadcaster) publishConflict(c model.Conflict) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.conflicts {
		select {
		case ch <- c:
		default:
		}
	}
}

func sendState(ch chan model.TrainState, st model.TrainState) {
	select {
	case ch <- st:
	default:
	}
}
