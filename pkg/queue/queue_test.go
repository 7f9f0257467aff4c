package queue

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestQueue talks to the Redis in REDIS_TEST_ADDR on a scratch database.
func newTestQueue(t *testing.T) (*Queue, *redis.Client) {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	require.NoError(t, client.Del(ctx, QueueEmails, QueueDLQ).Err())
	t.Cleanup(func() {
		_ = client.Del(context.Background(), QueueEmails, QueueDLQ).Err()
		_ = client.Close()
	})
	return NewQueue(client, nil), client
}

func TestEnqueueDequeue(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	quizID := uuid.New()

	require.NoError(t, q.EnqueueEmail(ctx, EmailPayload{EmailType: "SHARE", QuizID: &quizID, RecipientEmail: "a@example.com", Subject: "s", Body: "b"}))

	job, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, JobTypeEmail, job.Type)

	var p EmailPayload
	require.NoError(t, json.Unmarshal(job.Payload, &p))
	assert.Equal(t, "a@example.com", p.RecipientEmail)
	require.NotNil(t, p.QuizID)
	assert.Equal(t, quizID, *p.QuizID)
}

func TestRetryMovesToDLQ(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	require.NoError(t, q.EnqueueEmail(ctx, EmailPayload{EmailType: "RESULT", RecipientEmail: "a@example.com"}))

	for i := 0; i < MaxRetries; i++ {
		job, err := q.Dequeue(ctx)
		require.NoError(t, err)
		require.NotNil(t, job)
		require.NoError(t, q.Retry(ctx, job))
	}
	n, err := q.DLQLength(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
