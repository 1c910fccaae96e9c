package worker

import (
	"context"
	"log"

	"github.com/hibiken/asynq"

	"github.com/wavelane/backend/internal/notifications"
)

// Task type names. Each maps to its own weight-1 queue so the index, drain
// and digest cycles never run two instances of themselves concurrently.
const (
	TaskIndex  = "notifications:index"
	TaskDrain  = "notifications:drain"
	TaskDigest = "notifications:email"
)

// Cadences for the periodic tasks.
const (
	indexInterval  = "@every 10s"
	drainInterval  = "@every 30s"
	digestInterval = "@every 10m"
)

// Worker runs the notification pipeline's periodic jobs on asynq.
type Worker struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler

	indexer *notifications.Indexer
	digest  *notifications.DigestScheduler
}

// NewWorker creates the job server and its schedule.
func NewWorker(redisAddr string, indexer *notifications.Indexer, digest *notifications.DigestScheduler) *Worker {
	redisOpt := asynq.RedisClientOpt{Addr: redisAddr}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 3,
			Queues: map[string]int{
				TaskIndex:  1,
				TaskDrain:  1,
				TaskDigest: 1,
			},
		},
	)
	scheduler := asynq.NewScheduler(redisOpt, nil)

	return &Worker{
		server:    server,
		scheduler: scheduler,
		indexer:   indexer,
		digest:    digest,
	}
}

// Start registers the periodic tasks and runs the server until ctx is done.
func (w *Worker) Start(ctx context.Context) error {
	register := func(spec, taskType string) {
		task := asynq.NewTask(taskType, nil)
		if _, err := w.scheduler.Register(spec, task, asynq.Queue(taskType)); err != nil {
			log.Fatalf("worker: register %s: %v", taskType, err)
		}
	}
	register(indexInterval, TaskIndex)
	register(drainInterval, TaskDrain)
	register(digestInterval, TaskDigest)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskIndex, w.handleIndex)
	mux.HandleFunc(TaskDrain, w.handleDrain)
	mux.HandleFunc(TaskDigest, w.handleDigest)

	if err := w.scheduler.Start(); err != nil {
		return err
	}
	if err := w.server.Start(mux); err != nil {
		return err
	}
	log.Println("worker: started")

	<-ctx.Done()

	w.scheduler.Shutdown()
	w.server.Stop()
	w.server.Shutdown()
	log.Println("worker: stopped")
	return nil
}

func (w *Worker) handleIndex(ctx context.Context, _ *asynq.Task) error {
	return w.indexer.RunOnce(ctx)
}

func (w *Worker) handleDrain(ctx context.Context, _ *asynq.Task) error {
	return w.indexer.DrainPushes(ctx)
}

func (w *Worker) handleDigest(ctx context.Context, _ *asynq.Task) error {
	return w.digest.RunOnce(ctx)
}
