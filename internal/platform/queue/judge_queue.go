package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// JudgeQueue is a FIFO of submission ids kept in a redis list: LPUSH in, BRPOP out.
type JudgeQueue struct {
	rdb  *redis.Client
	name string
}

func NewJudgeQueue(rdb *redis.Client, name string) *JudgeQueue {
	return &JudgeQueue{rdb: rdb, name: name}
}

func (q *JudgeQueue) Name() string {
	return q.name
}

func (q *JudgeQueue) Enqueue(ctx context.Context, submissionID string) error {
	if err := q.rdb.LPush(ctx, q.name, submissionID).Err(); err != nil {
		return fmt.Errorf("enqueue %s on %s: %w", submissionID, q.name, err)
	}
	return nil
}

// Requeue puts the id back at the consuming end so it is picked up next.
func (q *JudgeQueue) Requeue(ctx context.Context, submissionID string) error {
	if err := q.rdb.RPush(ctx, q.name, submissionID).Err(); err != nil {
		return fmt.Errorf("requeue %s on %s: %w", submissionID, q.name, err)
	}
	return nil
}

// Dequeue blocks for up to timeout. An empty id with a nil error means nothing arrived.
func (q *JudgeQueue) Dequeue(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.name).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", err
	}
	// res is [queueName, value]
	if len(res) < 2 {
		return "", nil
	}
	return res[1], nil
}

func (q *JudgeQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.name).Result()
}
