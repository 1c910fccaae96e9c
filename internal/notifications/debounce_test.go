package notifications

import (
	"testing"
	"time"
)

func TestDebounceFlushesAfterWindow(t *testing.T) {
	now := testBase
	b := NewDebounceBuffer(3 * time.Minute)
	b.now = func() time.Time { return now }

	b.Add(PendingCreate{UserID: 1, TrackID: 11, Message: "new track"})
	b.Add(PendingCreate{UserID: 2, TrackID: 11, Message: "new track"})

	if flushed := b.Expire(); len(flushed) != 0 {
		t.Fatalf("flushed before window elapsed: %+v", flushed)
	}

	now = now.Add(3 * time.Minute)
	flushed := b.Expire()
	if len(flushed) != 2 {
		t.Fatalf("expected 2 flushed entries, got %d", len(flushed))
	}
	if b.Len() != 0 {
		t.Fatalf("buffer not emptied, %d left", b.Len())
	}
}

func TestDebounceCancelSupersedes(t *testing.T) {
	now := testBase
	b := NewDebounceBuffer(3 * time.Minute)
	b.now = func() time.Time { return now }

	b.Add(PendingCreate{UserID: 1, TrackID: 11})
	b.Add(PendingCreate{UserID: 1, TrackID: 12})

	b.CancelTracks([]int64{11})

	now = now.Add(3 * time.Minute)
	flushed := b.Expire()
	if len(flushed) != 1 || flushed[0].TrackID != 12 {
		t.Fatalf("expected only track 12 to flush, got %+v", flushed)
	}
}

func TestDebounceCancelAfterWindowIsNoop(t *testing.T) {
	now := testBase
	b := NewDebounceBuffer(3 * time.Minute)
	b.now = func() time.Time { return now }

	b.Add(PendingCreate{UserID: 1, TrackID: 11})

	now = now.Add(3 * time.Minute)
	flushed := b.Expire()
	if len(flushed) != 1 {
		t.Fatalf("expected flush, got %+v", flushed)
	}

	// The album arrived too late; its cancel finds nothing and the duplicate
	// delivery stands.
	b.CancelTracks([]int64{11})
	if b.Len() != 0 {
		t.Fatalf("late cancel must not resurrect entries, %d left", b.Len())
	}
}

func TestDebounceExpiryOrder(t *testing.T) {
	now := testBase
	b := NewDebounceBuffer(3 * time.Minute)
	b.now = func() time.Time { return now }

	b.Add(PendingCreate{UserID: 1, TrackID: 11})
	now = now.Add(time.Minute)
	b.Add(PendingCreate{UserID: 1, TrackID: 12})

	// Only the first entry's window has elapsed.
	now = at(testBase, 3*time.Minute)
	flushed := b.Expire()
	if len(flushed) != 1 || flushed[0].TrackID != 11 {
		t.Fatalf("expected only track 11 to flush, got %+v", flushed)
	}
	if b.Len() != 1 {
		t.Fatalf("expected track 12 still held, %d entries", b.Len())
	}
}
