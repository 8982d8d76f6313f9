package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"creator-outreach/internal/config"
)

// RedisQueue coordinates the ready, in-flight, and scheduled job queues in
// Redis. The queue is the cross-process synchronization point; workers take
// jobs under a visibility lease and a stalled worker's job is reclaimed after
// the lease expires, at most MaxReclaims times.
type RedisQueue struct {
	client        *redis.Client
	readyKey      string
	inflightKey   string
	scheduledKey  string
	jobMetaPrefix string
	dlqKey        string
	visibilityTTL time.Duration
	maxReclaims   int
}

// NewRedisQueue builds a queue client from config.
func NewRedisQueue(cfg config.Config) *RedisQueue {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return NewRedisQueueWithClient(client, cfg.VisibilityTimeout, cfg.MaxReclaims)
}

// NewRedisQueueWithClient wires an existing client; tests use this with
// miniredis.
func NewRedisQueueWithClient(client *redis.Client, visibility time.Duration, maxReclaims int) *RedisQueue {
	if visibility == 0 {
		visibility = 5 * time.Minute
	}
	if maxReclaims == 0 {
		maxReclaims = 3
	}
	return &RedisQueue{
		client:        client,
		readyKey:      "outreach:ready",
		inflightKey:   "outreach:inflight",
		scheduledKey:  "outreach:scheduled",
		jobMetaPrefix: "outreach:jobmeta:",
		dlqKey:        "outreach:dlq",
		visibilityTTL: visibility,
		maxReclaims:   maxReclaims,
	}
}

func (q *RedisQueue) metaKey(jobID string) string {
	return q.jobMetaPrefix + jobID
}

// Enqueue inserts a job into either the scheduled set or the ready queue.
func (q *RedisQueue) Enqueue(ctx context.Context, jobID string, runAt time.Time) error {
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.metaKey(jobID), "enqueued_ms", time.Now().UnixMilli())
	if runAt.After(time.Now()) {
		pipe.ZAdd(ctx, q.scheduledKey, redis.Z{Score: float64(runAt.UnixMilli()), Member: jobID})
	} else {
		pipe.RPush(ctx, q.readyKey, jobID)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Schedule moves a job into the scheduled set for deferred execution.
func (q *RedisQueue) Schedule(ctx context.Context, jobID string, runAt time.Time) error {
	return q.client.ZAdd(ctx, q.scheduledKey, redis.Z{
		Score:  float64(runAt.UnixMilli()),
		Member: jobID,
	}).Err()
}

// PromoteScheduled moves due scheduled jobs into the ready queue. It returns
// how many were promoted.
func (q *RedisQueue) PromoteScheduled(ctx context.Context, now time.Time, limit int64) (int, error) {
	ids, err := q.client.ZRangeByScore(ctx, q.scheduledKey, &redis.ZRangeBy{
		Min:    "-inf",
		Max:    fmt.Sprintf("%d", now.UnixMilli()),
		Offset: 0,
		Count:  limit,
	}).Result()
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := q.client.TxPipeline()
	for _, id := range ids {
		pipe.ZRem(ctx, q.scheduledKey, id)
		pipe.RPush(ctx, q.readyKey, id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// DequeueWithLease pops a job from the ready queue and places it into
// inflight with a visibility deadline.
func (q *RedisQueue) DequeueWithLease(ctx context.Context) (string, error) {
	keys := []string{q.readyKey, q.inflightKey}
	res, err := dequeueScript.Run(ctx, q.client, keys, time.Now().Add(q.visibilityTTL).UnixMilli()).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	jobID, ok := res.(string)
	if !ok {
		return "", fmt.Errorf("unexpected type from dequeue script: %T", res)
	}
	return jobID, nil
}

// ExtendLease pushes the visibility deadline forward for an in-flight job.
func (q *RedisQueue) ExtendLease(ctx context.Context, jobID string, extension time.Duration) error {
	return q.client.ZAdd(ctx, q.inflightKey, redis.Z{
		Score:  float64(time.Now().Add(extension).UnixMilli()),
		Member: jobID,
	}).Err()
}

// Ack removes a job from in-flight tracking and its meta record.
func (q *RedisQueue) Ack(ctx context.Context, jobID string) error {
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, q.inflightKey, jobID)
	pipe.Del(ctx, q.metaKey(jobID))
	_, err := pipe.Exec(ctx)
	return err
}

// RequeueExpired reclaims leases that timed out. A job reclaimed more than
// MaxReclaims times is dead-lettered instead of re-queued. Returns the
// re-queued ids and the dead-lettered ids.
func (q *RedisQueue) RequeueExpired(ctx context.Context, now time.Time, limit int64) (requeued, deadLettered []string, err error) {
	ids, err := q.client.ZRangeByScore(ctx, q.inflightKey, &redis.ZRangeBy{
		Min:    "-inf",
		Max:    fmt.Sprintf("%d", now.UnixMilli()),
		Offset: 0,
		Count:  limit,
	}).Result()
	if err != nil {
		return nil, nil, err
	}

	for _, id := range ids {
		reclaims, err := q.client.HIncrBy(ctx, q.metaKey(id), "reclaims", 1).Result()
		if err != nil {
			return requeued, deadLettered, err
		}
		pipe := q.client.TxPipeline()
		pipe.ZRem(ctx, q.inflightKey, id)
		if int(reclaims) > q.maxReclaims {
			pipe.RPush(ctx, q.dlqKey, id)
			deadLettered = append(deadLettered, id)
		} else {
			pipe.RPush(ctx, q.readyKey, id)
			requeued = append(requeued, id)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return requeued, deadLettered, err
		}
	}
	return requeued, deadLettered, nil
}

// Drain cancels all waiting jobs: everything in the ready queue and the
// scheduled set. In-flight jobs run to completion. Returns the drained ids.
func (q *RedisQueue) Drain(ctx context.Context) ([]string, error) {
	ready, err := q.client.LRange(ctx, q.readyKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	scheduled, err := q.client.ZRange(ctx, q.scheduledKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	ids := append(ready, scheduled...)
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := q.client.TxPipeline()
	pipe.Del(ctx, q.readyKey)
	pipe.Del(ctx, q.scheduledKey)
	for _, id := range ids {
		pipe.Del(ctx, q.metaKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

// Cancel removes a single job from ready, scheduled, and in-flight sets.
func (q *RedisQueue) Cancel(ctx context.Context, jobID string) error {
	pipe := q.client.TxPipeline()
	pipe.LRem(ctx, q.readyKey, 0, jobID)
	pipe.ZRem(ctx, q.inflightKey, jobID)
	pipe.ZRem(ctx, q.scheduledKey, jobID)
	pipe.Del(ctx, q.metaKey(jobID))
	_, err := pipe.Exec(ctx)
	return err
}

// DLQPush appends to the dead-letter queue for operational inspection.
func (q *RedisQueue) DLQPush(ctx context.Context, jobID string) error {
	return q.client.RPush(ctx, q.dlqKey, jobID).Err()
}

// DLQPeek reads the latest dead-lettered job IDs.
func (q *RedisQueue) DLQPeek(ctx context.Context, count int64) ([]string, error) {
	return q.client.LRange(ctx, q.dlqKey, 0, count-1).Result()
}

// ReadyDepth returns the length of the ready queue.
func (q *RedisQueue) ReadyDepth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.readyKey).Result()
}

var dequeueScript = redis.NewScript(`
local job = redis.call('LPOP', KEYS[1])
if job then
  redis.call('ZADD', KEYS[2], ARGV[1], job)
  return job
end
return nil
`)
