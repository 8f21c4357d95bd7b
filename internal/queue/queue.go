package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

const TaskTypePublishPost = "publish:post"

type PublishPostPayload struct {
	PostID int64 `json:"post_id"`
}

const publishQueue = "default"

func publishTaskID(postID int64) string {
	return fmt.Sprintf("publish:%d", postID)
}

// NewPublishPostTask builds the publish-now task. The task id is derived from
// the post so a double click enqueues it only once, and asynq never retries it:
// retries are an owner decision.
func NewPublishPostTask(postID int64) (*asynq.Task, error) {
	payload, err := json.Marshal(PublishPostPayload{PostID: postID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypePublishPost, payload,
		asynq.TaskID(publishTaskID(postID)),
		asynq.Queue(publishQueue),
		asynq.MaxRetry(0),
	), nil
}

type taskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type taskInspector interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
	DeleteTask(queue, id string) error
}

// Enqueuer submits publish-now tasks to Redis.
type Enqueuer struct {
	client    taskClient
	inspector taskInspector
}

func NewEnqueuer(client *asynq.Client, inspector *asynq.Inspector) *Enqueuer {
	return &Enqueuer{client: client, inspector: inspector}
}

// EnqueuePublish queues the post once. A finished or archived task left under
// the same id is replaced, so a post can be published again after a failed run.
func (e *Enqueuer) EnqueuePublish(ctx context.Context, postID int64) error {
	task, err := NewPublishPostTask(postID)
	if err != nil {
		return err
	}

	info, err := e.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		replaced, rerr := e.replaceFinished(postID)
		if rerr != nil {
			return fmt.Errorf("enqueue publish task: %w", rerr)
		}
		if !replaced {
			slog.Info("publish task already queued", "post_id", postID)
			return nil
		}
		info, err = e.client.EnqueueContext(ctx, task)
	}
	if err != nil {
		return fmt.Errorf("enqueue publish task: %w", err)
	}

	slog.Info("publish task queued", "post_id", postID, "task_id", info.ID, "queue", info.Queue)
	return nil
}

// replaceFinished deletes the task holding the post's id when it is no longer
// waiting to run. It reports whether the id is free again.
func (e *Enqueuer) replaceFinished(postID int64) (bool, error) {
	id := publishTaskID(postID)
	info, err := e.inspector.GetTaskInfo(publishQueue, id)
	if errors.Is(err, asynq.ErrTaskNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}

	switch info.State {
	case asynq.TaskStateArchived, asynq.TaskStateCompleted:
	default:
		return false, nil
	}

	if err := e.inspector.DeleteTask(publishQueue, id); err != nil && !errors.Is(err, asynq.ErrTaskNotFound) {
		return false, err
	}
	slog.Info("replacing finished publish task", "post_id", postID, "state", info.State.String())
	return true, nil
}
