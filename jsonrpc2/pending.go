package jsonrpc2

import (
	"sort"
	"sync"
	"time"
)

type pendingCall struct {
	future    *Future
	timestamp time.Time
}

type pendingItem struct {
	key       string
	timestamp time.Time
}

type pendingQueue []pendingItem

func (p pendingQueue) Len() int {
	return len(p)
}

func (p pendingQueue) Less(i, j int) bool {
	return p[i].timestamp.Before(p[j].timestamp)
}

func (p pendingQueue) Swap(i, j int) {
	p[i], p[j] = p[j], p[i]
}

func pendingOldest(pending map[string]pendingCall, num int) pendingQueue {
	if num > len(pending) {
		num = len(pending)
	}
	queue := make(pendingQueue, 0, len(pending))
	for key, p := range pending {
		queue = append(queue, pendingItem{
			key, p.timestamp,
		})
	}
	sort.Sort(queue)
	return queue[:num]
}

// pendingTable holds the outbound calls that are waiting for a response,
// keyed by ID.Key(). Every operation holds the lock for its whole
// read-modify-write.
type pendingTable struct {
	mu    sync.Mutex
	calls map[string]pendingCall
}

// insert adds a pending call. If limit is reached, the discard oldest entries
// are dropped first; their futures never resolve.
func (p *pendingTable) insert(key string, f *Future, limit, discard int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls == nil {
		p.calls = map[string]pendingCall{}
	}
	if _, ok := p.calls[key]; ok {
		return DuplicateIDError{f.ID()}
	}
	if limit > 0 && len(p.calls) >= limit && discard > 0 {
		for _, item := range pendingOldest(p.calls, discard) {
			logger.Printf("Discarding pending call %s, limit of %d reached", item.key, limit)
			delete(p.calls, item.key)
		}
	}
	p.calls[key] = pendingCall{
		future:    f,
		timestamp: time.Now(),
	}
	return nil
}

// take removes and returns the pending call for key.
func (p *pendingTable) take(key string) (*Future, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	call, ok := p.calls[key]
	if !ok {
		return nil, false
	}
	delete(p.calls, key)
	return call.future, true
}

// forget removes the pending call for key, only if it still belongs to f.
func (p *pendingTable) forget(key string, f *Future) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if call, ok := p.calls[key]; ok && call.future == f {
		delete(p.calls, key)
	}
}

func (p *pendingTable) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}
