package gateway

import "sync"

// pumpNotifier wakes feedback waiters by garden id. The feedback
// handler signals after persisting a status; the pump start wait
// re-reads the garden on every wake, so a missed signal only costs one
// poll interval.
type pumpNotifier struct {
	mu   sync.Mutex
	subs map[uint][]chan struct{}
}

func newPumpNotifier() *pumpNotifier {
	return &pumpNotifier{subs: make(map[uint][]chan struct{})}
}

// subscribe registers a waiter for gardenID. The returned channel has
// capacity 1 so notify never blocks.
func (n *pumpNotifier) subscribe(gardenID uint) chan struct{} {
	ch := make(chan struct{}, 1)
	n.mu.Lock()
	n.subs[gardenID] = append(n.subs[gardenID], ch)
	n.mu.Unlock()
	return ch
}

func (n *pumpNotifier) unsubscribe(gardenID uint, ch chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	subs := n.subs[gardenID]
	for i, c := range subs {
		if c == ch {
			n.subs[gardenID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(n.subs[gardenID]) == 0 {
		delete(n.subs, gardenID)
	}
}

// notify wakes every waiter for gardenID without blocking.
func (n *pumpNotifier) notify(gardenID uint) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs[gardenID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
