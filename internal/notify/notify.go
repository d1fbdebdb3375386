// Package notify is a fire-and-forget notification outbox backed by a
// Redis stream. Delivery workers (push, email) consume the stream out of
// process; the API never blocks on them.
package notify

import (
	"context"
	"log"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Notification is one message for one user.
type Notification struct {
	UserID  int64
	Title   string
	Message string
}

// Queue appends notifications to the configured Redis stream.
type Queue struct {
	redis  *redis.Client
	stream string
}

// NewQueue creates a notification queue writing to the given stream.
func NewQueue(rdb *redis.Client, stream string) *Queue {
	return &Queue{redis: rdb, stream: stream}
}

// Enqueue appends a notification to the stream. Failures are logged and
// swallowed; a lost notification never fails the operation that raised it.
// A zero UserID means no configured recipient and is skipped.
func (q *Queue) Enqueue(ctx context.Context, n Notification) {
	if n.UserID == 0 {
		return
	}
	err := q.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]interface{}{
			"user_id": strconv.FormatInt(n.UserID, 10),
			"title":   n.Title,
			"message": n.Message,
		},
	}).Err()
	if err != nil {
		log.Printf("[notify] enqueue for user %d failed: %v", n.UserID, err)
	}
}

// EnqueueAll enqueues a batch of notifications.
func (q *Queue) EnqueueAll(ctx context.Context, ns []Notification) {
	for _, n := range ns {
		q.Enqueue(ctx, n)
	}
}
