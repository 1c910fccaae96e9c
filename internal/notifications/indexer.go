package notifications

import (
	"context"
	"log"

	"github.com/wavelane/backend/internal/repositories"
)

// EventSource supplies raw events past a block checkpoint.
type EventSource interface {
	Fetch(ctx context.Context, minBlocknumber int64) ([]Event, error)
}

// Indexer drives the poll-process-publish loop. Each run pulls events past
// the stored checkpoint, processes them grouped by type inside one
// transaction, and only after commit hands the resulting pushes to the
// debounce buffer and publish queue.
type Indexer struct {
	feed     EventSource
	repo     repositories.NotificationRepository
	subs     repositories.SubscriptionRepository
	resolver *SettingsResolver
	meta     MetadataClient
	queue    *PublishQueue
	debounce *DebounceBuffer
}

// NewIndexer wires the pipeline together.
func NewIndexer(
	feed EventSource,
	repo repositories.NotificationRepository,
	subs repositories.SubscriptionRepository,
	resolver *SettingsResolver,
	meta MetadataClient,
	queue *PublishQueue,
	debounce *DebounceBuffer,
) *Indexer {
	return &Indexer{
		feed:     feed,
		repo:     repo,
		subs:     subs,
		resolver: resolver,
		meta:     meta,
		queue:    queue,
		debounce: debounce,
	}
}

// RunOnce executes one poll cycle. The checkpoint is the highest blocknumber
// already persisted, so a crash mid-cycle replays the batch; the upsert
// semantics make the replay converge to the same rows without re-notifying.
func (ix *Indexer) RunOnce(ctx context.Context) error {
	checkpoint, err := ix.repo.HighestBlocknumber()
	if err != nil {
		return err
	}
	events, err := ix.feed.Fetch(ctx, checkpoint)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	out, err := ix.Process(ctx, events)
	if err != nil {
		return err
	}
	ix.applyOutput(out)
	log.Printf("notifications: processed %d events past block %d (%d pushes, %d held)",
		len(events), checkpoint, len(out.Pushes), len(out.Holds))
	return nil
}

// Process runs one batch of events through the type processors inside a
// single transaction and returns the push side effects. Any processor error
// rolls back the whole batch so no partial bucket state is committed.
func (ix *Indexer) Process(ctx context.Context, events []Event) (*BatchOutput, error) {
	grouped := make(map[EventType][]Event)
	for _, ev := range events {
		grouped[ev.Type] = append(grouped[ev.Type], ev)
	}

	out := &BatchOutput{}
	err := ix.repo.Transaction(func(tx repositories.NotificationRepository) error {
		p := &procContext{
			ctx:      ctx,
			repo:     tx,
			subs:     ix.subs,
			resolver: ix.resolver,
			meta:     ix.meta,
			out:      out,
		}
		for _, et := range processOrder {
			batch := grouped[et]
			if len(batch) == 0 {
				continue
			}
			if err := processors[et](p, batch); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// applyOutput moves a committed batch's side effects into the process-local
// buffers. Supersessions cancel first so a track create and its parent album
// from the same batch never both push.
func (ix *Indexer) applyOutput(out *BatchOutput) {
	canceled := make(map[int64]bool, len(out.CancelTrackIDs))
	for _, id := range out.CancelTrackIDs {
		canceled[id] = true
	}
	ix.debounce.CancelTracks(out.CancelTrackIDs)
	for _, hold := range out.Holds {
		if canceled[hold.TrackID] {
			continue
		}
		ix.debounce.Add(hold)
	}
	for _, push := range out.Pushes {
		ix.queue.Publish(push.UserID, push.Message, push.Title, push.PlaySound, push.Channels)
	}
}

// DrainPushes flushes debounce entries whose window has elapsed into the
// publish queue, then drains the queue to the transports. Runs on its own
// timer, independent of RunOnce.
func (ix *Indexer) DrainPushes(ctx context.Context) error {
	for _, p := range ix.debounce.Expire() {
		ix.queue.Publish(p.UserID, p.Message, p.Title, true, p.Channels)
	}
	return ix.queue.Drain(ctx)
}
