package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"breederchat/internal/logger"
	"breederchat/internal/platform/tasks"

	"github.com/hibiken/asynq"
)

// Enqueuer is satisfied by *tasks.Client.
type Enqueuer interface {
	Enqueue(task *asynq.Task, queue string, maxRetries int) error
}

// Queued defers writes to the asynq worker. Lookups go straight to the
// wrapped cache.
type Queued struct {
	next       Cache
	tasks      Enqueuer
	maxRetries int
	log        *logger.Logger
}

func NewQueued(next Cache, t Enqueuer, maxRetries int) *Queued {
	return &Queued{next: next, tasks: t, maxRetries: maxRetries, log: logger.New("CacheWriter")}
}

func (q *Queued) Lookup(ctx context.Context, url string) (Entry, bool, error) {
	return q.next.Lookup(ctx, url)
}

func (q *Queued) Upsert(_ context.Context, e Entry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode cache task: %w", err)
	}
	task := asynq.NewTask(tasks.TaskTypeCacheUpsert, payload)
	if err := q.tasks.Enqueue(task, tasks.QueueDefault, q.maxRetries); err != nil {
		return fmt.Errorf("enqueue cache upsert %s: %w", e.URL, err)
	}
	return nil
}

// HandleTask is registered on the worker mux for TaskTypeCacheUpsert.
func (q *Queued) HandleTask(ctx context.Context, t *asynq.Task) error {
	var e Entry
	if err := json.Unmarshal(t.Payload(), &e); err != nil {
		// A malformed payload will never succeed.
		return fmt.Errorf("decode cache task: %v: %w", err, asynq.SkipRetry)
	}
	if err := q.next.Upsert(ctx, e); err != nil {
		q.log.LogWarnf("cache upsert %s failed: %v", e.URL, err)
		return err
	}
	q.log.LogDebugf("cache upsert %s (%d records, %d pages)", e.URL, len(e.Records), e.PageCount)
	return nil
}
