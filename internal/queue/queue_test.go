package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis stands in for both the asynq client and inspector, keyed by task id.
type fakeRedis struct {
	tasks    map[string]asynq.TaskState
	enqueued int
	deleted  []string
	infoErr  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{tasks: map[string]asynq.TaskState{}}
}

func (f *fakeRedis) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	var payload PublishPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return nil, err
	}
	id := publishTaskID(payload.PostID)
	if _, ok := f.tasks[id]; ok {
		return nil, asynq.ErrTaskIDConflict
	}
	f.tasks[id] = asynq.TaskStatePending
	f.enqueued++
	return &asynq.TaskInfo{ID: id, Queue: publishQueue, State: asynq.TaskStatePending}, nil
}

func (f *fakeRedis) GetTaskInfo(queue, id string) (*asynq.TaskInfo, error) {
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	state, ok := f.tasks[id]
	if !ok {
		return nil, asynq.ErrTaskNotFound
	}
	return &asynq.TaskInfo{ID: id, Queue: queue, State: state}, nil
}

func (f *fakeRedis) DeleteTask(queue, id string) error {
	f.deleted = append(f.deleted, id)
	delete(f.tasks, id)
	return nil
}

func newTestEnqueuer(redis *fakeRedis) *Enqueuer {
	return &Enqueuer{client: redis, inspector: redis}
}

func TestEnqueuePublish(t *testing.T) {
	t.Run("queues once while pending", func(t *testing.T) {
		redis := newFakeRedis()
		e := newTestEnqueuer(redis)

		require.NoError(t, e.EnqueuePublish(context.Background(), 5))
		require.NoError(t, e.EnqueuePublish(context.Background(), 5))

		assert.Equal(t, 1, redis.enqueued)
		assert.Empty(t, redis.deleted)
	})

	t.Run("active task is left alone", func(t *testing.T) {
		redis := newFakeRedis()
		redis.tasks["publish:5"] = asynq.TaskStateActive
		e := newTestEnqueuer(redis)

		require.NoError(t, e.EnqueuePublish(context.Background(), 5))
		assert.Equal(t, 0, redis.enqueued)
		assert.Empty(t, redis.deleted)
	})

	t.Run("archived task from a failed run is replaced", func(t *testing.T) {
		redis := newFakeRedis()
		redis.tasks["publish:5"] = asynq.TaskStateArchived
		e := newTestEnqueuer(redis)

		require.NoError(t, e.EnqueuePublish(context.Background(), 5))
		assert.Equal(t, []string{"publish:5"}, redis.deleted)
		assert.Equal(t, 1, redis.enqueued)
		assert.Equal(t, asynq.TaskStatePending, redis.tasks["publish:5"])
	})

	t.Run("completed task is replaced", func(t *testing.T) {
		redis := newFakeRedis()
		redis.tasks["publish:5"] = asynq.TaskStateCompleted
		e := newTestEnqueuer(redis)

		require.NoError(t, e.EnqueuePublish(context.Background(), 5))
		assert.Equal(t, 1, redis.enqueued)
	})

	t.Run("inspector failure is reported", func(t *testing.T) {
		redis := newFakeRedis()
		redis.tasks["publish:5"] = asynq.TaskStateArchived
		redis.infoErr = errors.New("redis: connection refused")
		e := newTestEnqueuer(redis)

		err := e.EnqueuePublish(context.Background(), 5)
		assert.ErrorContains(t, err, "connection refused")
		assert.Equal(t, 0, redis.enqueued)
	})
}
