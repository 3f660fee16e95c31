package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/supportpilot/internal/storage"
)

// JobTypeBuild is the job type processed by Worker.
const JobTypeBuild = "knowledge_build"

// JobStore abstracts the job queue operations.
type JobStore interface {
	EnqueueJob(job storage.Job) error
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string, resultJSON string) error
	FailJob(id string, errMsg string) error
}

// KnowledgeBuilder runs a build over a set of seeds.
type KnowledgeBuilder interface {
	Build(ctx context.Context, seeds []Seed) BuildStats
}

// Worker processes knowledge_build jobs from the SQLite job queue.
type Worker struct {
	store   JobStore
	builder KnowledgeBuilder
	poll    time.Duration
	logger  *slog.Logger
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, builder KnowledgeBuilder, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:   store,
		builder: builder,
		poll:    pollInterval,
		logger:  slog.Default().With("component", "ingest_worker"),
	}
}

type buildPayload struct {
	Seeds []Seed `json:"seeds"`
}

// EnqueueBuild queues a build of seeds and returns the job ID.
func EnqueueBuild(store JobStore, seeds []Seed) (string, error) {
	payload, err := json.Marshal(buildPayload{Seeds: seeds})
	if err != nil {
		return "", fmt.Errorf("encoding payload: %w", err)
	}
	job := storage.Job{
		ID:          uuid.New().String(),
		Type:        JobTypeBuild,
		PayloadJSON: string(payload),
		MaxAttempts: 1,
	}
	if err := store.EnqueueJob(job); err != nil {
		return "", fmt.Errorf("enqueueing build job: %w", err)
	}
	return job.ID, nil
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single knowledge_build job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{JobTypeBuild})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	result, err := w.processJob(ctx, job)
	if err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID, result); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) (string, error) {
	var payload buildPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return "", fmt.Errorf("parsing payload: %w", err)
	}
	if len(payload.Seeds) == 0 {
		return "", fmt.Errorf("job has no seeds")
	}

	stats := w.builder.Build(ctx, payload.Seeds)
	if ctx.Err() != nil {
		return "", fmt.Errorf("build interrupted: %w", ctx.Err())
	}

	result, err := json.Marshal(stats)
	if err != nil {
		return "", fmt.Errorf("encoding result: %w", err)
	}
	return string(result), nil
}
