package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/multipost/internal/service"
)

type Worker struct {
	publishing service.PublishingService
}

func NewWorker(publishing service.PublishingService) *Worker {
	return &Worker{publishing: publishing}
}

func (w *Worker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypePublishPost, w.HandlePublishPostTask)
	return mux
}

func (w *Worker) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode publish payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.PostID <= 0 {
		return fmt.Errorf("publish payload without post id: %w", asynq.SkipRetry)
	}
	return w.publishing.PublishPost(ctx, payload.PostID)
}
