package notifications

import (
	"container/heap"
	"sync"
	"time"
)

// PendingCreate is one held-back track upload push for a subscriber.
type PendingCreate struct {
	UserID   int64
	TrackID  int64
	Message  string
	Title    string
	Channels ChannelSet

	expiresAt time.Time
	canceled  bool
	index     int
}

type pendingHeap []*PendingCreate

func (h pendingHeap) Len() int            { return len(h) }
func (h pendingHeap) Less(i, j int) bool  { return h[i].expiresAt.Before(h[j].expiresAt) }
func (h pendingHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *pendingHeap) Push(x interface{}) { e := x.(*PendingCreate); e.index = len(*h); *h = append(*h, e) }
func (h *pendingHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// DebounceBuffer holds track-create pushes for a fixed window so a superseding
// album or playlist create can cancel them. Entries are a min-heap on expiry;
// a per-track index lets supersession cancel without scanning. An album event
// arriving after the window cannot cancel anymore and both notifications go
// out; that race is accepted.
//
// The buffer is process-local and guarded by a mutex because the indexer and
// the drain job run on separate timers.
type DebounceBuffer struct {
	mu      sync.Mutex
	heap    pendingHeap
	byTrack map[int64][]*PendingCreate
	window  time.Duration
	now     func() time.Time
}

// NewDebounceBuffer creates a buffer with the given hold window.
func NewDebounceBuffer(window time.Duration) *DebounceBuffer {
	return &DebounceBuffer{
		byTrack: make(map[int64][]*PendingCreate),
		window:  window,
		now:     time.Now,
	}
}

// Add holds a track-create push until the window elapses.
func (b *DebounceBuffer) Add(p PendingCreate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := &p
	e.expiresAt = b.now().Add(b.window)
	heap.Push(&b.heap, e)
	b.byTrack[e.TrackID] = append(b.byTrack[e.TrackID], e)
}

// CancelTracks drops every pending entry referencing one of the given tracks.
// Called when an album/playlist create supersedes its member tracks.
func (b *DebounceBuffer) CancelTracks(trackIDs []int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range trackIDs {
		for _, e := range b.byTrack[id] {
			e.canceled = true
		}
		delete(b.byTrack, id)
	}
}

// Expire pops every entry whose window has elapsed and returns the ones that
// were not superseded in the meantime.
func (b *DebounceBuffer) Expire() []PendingCreate {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	var out []PendingCreate
	for b.heap.Len() > 0 && !b.heap[0].expiresAt.After(now) {
		e := heap.Pop(&b.heap).(*PendingCreate)
		if !e.canceled {
			b.forgetTrack(e)
			out = append(out, *e)
		}
	}
	return out
}

// Len reports the number of buffered entries, canceled ones included until
// they expire.
func (b *DebounceBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.heap.Len()
}

func (b *DebounceBuffer) forgetTrack(e *PendingCreate) {
	entries := b.byTrack[e.TrackID]
	for i, other := range entries {
		if other == e {
			b.byTrack[e.TrackID] = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	if len(b.byTrack[e.TrackID]) == 0 {
		delete(b.byTrack, e.TrackID)
	}
}
