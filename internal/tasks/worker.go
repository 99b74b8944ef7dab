package tasks

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// WorkerPool polls the task queue and dispatches tasks to registered handlers.
type WorkerPool struct {
	repo        *Repository
	handlers    map[string]Handler
	logger      *slog.Logger
	workerCount int
	stop        chan struct{}
	wg          sync.WaitGroup
}

func NewWorkerPool(repo *Repository, handlers map[string]Handler, logger *slog.Logger, workerCount int) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerPool{repo: repo, handlers: handlers, logger: logger, workerCount: workerCount, stop: make(chan struct{})}
}

// Start launches the worker goroutines.
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop signals workers to stop and waits for them.
func (p *WorkerPool) Stop() {
	close(p.stop)
	p.wg.Wait()
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			p.logger.Info("worker stopping", "id", id)
			return
		case <-ctx.Done():
			p.logger.Info("context canceled, worker exiting", "id", id)
			return
		default:
			task, err := p.repo.FetchNext(ctx)
			if err != nil {
				p.logger.Error("fetch task", "err", err)
				time.Sleep(1 * time.Second)
				continue
			}
			if task == nil {
				time.Sleep(500 * time.Millisecond)
				continue
			}
			claimed, err := p.repo.MarkRunning(ctx, task.ID)
			if err != nil {
				p.logger.Error("claim task", "id", task.ID, "err", err)
				continue
			}
			if !claimed {
				// another worker got it first
				continue
			}
			p.run(ctx, task)
		}
	}
}

func (p *WorkerPool) run(ctx context.Context, task *Task) {
	h, ok := p.handlers[task.Type]
	if !ok {
		task.Status = "failed"
		task.LastError = "no handler"
		if err := p.repo.MoveToDeadLetter(ctx, task); err != nil {
			p.logger.Error("move to dead letter", "err", err)
		}
		return
	}

	err := h(ctx, task)
	if err == nil {
		task.Status = "done"
		if upErr := p.repo.UpdateTask(ctx, task); upErr != nil {
			p.logger.Error("update done task", "err", upErr)
		}
		return
	}

	task.Attempts++
	task.LastError = err.Error()
	if task.Attempts >= task.MaxAttempts {
		task.Status = "failed"
		if mvErr := p.repo.MoveToDeadLetter(ctx, task); mvErr != nil {
			p.logger.Error("move to dead letter", "err", mvErr)
		}
		return
	}

	// schedule retry with backoff
	t := time.Now().Add(BackoffDuration(task.Attempts))
	task.NextTryAt = &t
	task.Status = "retry"
	if upErr := p.repo.UpdateTask(ctx, task); upErr != nil {
		p.logger.Error("update task for retry", "err", upErr)
	}
}

// Enqueue creates a task that runs as soon as a worker is free.
func (p *WorkerPool) Enqueue(ctx context.Context, typ string, payload any, priority int, maxAttempts int) (int64, error) {
	return p.schedule(ctx, typ, payload, priority, maxAttempts, time.Now())
}

// Schedule creates a task that runs no earlier than runAt. Satisfies
// session.Scheduler.
func (p *WorkerPool) Schedule(ctx context.Context, typ string, payload any, runAt time.Time) (int64, error) {
	return p.schedule(ctx, typ, payload, 100, 3, runAt)
}

func (p *WorkerPool) schedule(ctx context.Context, typ string, payload any, priority, maxAttempts int, runAt time.Time) (int64, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	t := &Task{Type: typ, Payload: b, Priority: priority, MaxAttempts: maxAttempts, ScheduledAt: runAt}
	return p.repo.Enqueue(ctx, t)
}
