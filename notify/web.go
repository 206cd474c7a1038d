package notify

import (
	"context"
	"log"
	"sync"
)

// defaultHistorySize bounds the recent-record ring when no capacity is given.
const defaultHistorySize = 10

// Web broadcasts records to attached event-stream listeners and keeps a
// bounded ring of recent records so reconnecting clients can catch up.
// The ring is best effort only; nothing survives a process restart.
type Web struct {
	mu        sync.Mutex
	listeners map[chan Record]struct{}
	recent    []Record
	capacity  int
}

func NewWeb(historySize int) *Web {
	if historySize <= 0 {
		historySize = defaultHistorySize
	}
	return &Web{
		listeners: make(map[chan Record]struct{}),
		capacity:  historySize,
	}
}

// Subscribe attaches a listener. The returned channel is closed when the
// listener is detached, either by Unsubscribe or by falling behind.
func (w *Web) Subscribe() chan Record {
	ch := make(chan Record, w.capacity)
	w.mu.Lock()
	w.listeners[ch] = struct{}{}
	w.mu.Unlock()
	return ch
}

// Unsubscribe detaches a listener. Safe to call for an already-detached
// channel.
func (w *Web) Unsubscribe(ch chan Record) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.listeners[ch]; ok {
		delete(w.listeners, ch)
		close(ch)
	}
}

// Recent returns the buffered records, oldest first.
func (w *Web) Recent() []Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Record, len(w.recent))
	copy(out, w.recent)
	return out
}

// Broadcast appends the record to the ring and fans it out. A listener
// whose buffer is full cannot be written to and is detached, mirroring a
// dead client connection.
func (w *Web) Broadcast(rec Record) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.recent = append(w.recent, rec)
	if len(w.recent) > w.capacity {
		w.recent = w.recent[len(w.recent)-w.capacity:]
	}
	for ch := range w.listeners {
		select {
		case ch <- rec:
		default:
			log.Printf("Notify: detaching stalled event-stream listener")
			delete(w.listeners, ch)
			close(ch)
		}
	}
}

// ListenerCount reports how many listeners are currently attached.
func (w *Web) ListenerCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.listeners)
}

func (w *Web) NotifyPendingLeaveRequest(ctx context.Context, a Alert) bool {
	w.Broadcast(leaveRequestRecord(a))
	return true
}

func (w *Web) NotifySummary(ctx context.Context, count int) bool {
	if count == 0 {
		return true
	}
	w.Broadcast(summaryRecord(count))
	return true
}

func (w *Web) NotifyTest(ctx context.Context) bool {
	w.Broadcast(testRecord())
	return true
}
