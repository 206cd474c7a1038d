package watch

// Tracker remembers which message ids have already been resolved this
// process lifetime, either because a reply was found or because an alert
// went out. It is deliberately not persisted: a restart forgets history
// and may re-alert for a still-unreplied request. The scan loop is
// sequential, so no locking is needed.
type Tracker struct {
	ids map[string]struct{}
}

func NewTracker() *Tracker {
	return &Tracker{ids: make(map[string]struct{})}
}

func (t *Tracker) Contains(id string) bool {
	_, ok := t.ids[id]
	return ok
}

// Mark records an id as processed. Marking twice is a no-op.
func (t *Tracker) Mark(id string) {
	t.ids[id] = struct{}{}
}

// Len reports how many ids have been processed so far.
func (t *Tracker) Len() int {
	return len(t.ids)
}
