package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"
)

type WorkerPool struct {
	store       Store
	handlers    map[string]Handler
	logger      *slog.Logger
	workerCount int
	idle        time.Duration
	observe     func(jobType, result string)
	stop        chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

func NewWorkerPool(store Store, handlers map[string]Handler, logger *slog.Logger, workerCount int) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerPool{
		store:       store,
		handlers:    handlers,
		logger:      logger,
		workerCount: workerCount,
		idle:        500 * time.Millisecond,
		observe:     func(string, string) {},
		stop:        make(chan struct{}),
	}
}

// SetPollInterval changes how long an idle worker waits before polling again.
func (p *WorkerPool) SetPollInterval(d time.Duration) {
	if d > 0 {
		p.idle = d
	}
}

// SetObserver registers a callback told about every finished attempt with
// result "done", "retry" or "failed".
func (p *WorkerPool) SetObserver(f func(jobType, result string)) {
	if f != nil {
		p.observe = f
	}
}

// Start launches the worker goroutines
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop signals workers to stop and waits for them. It is safe to call more
// than once.
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
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
		}

		job, err := p.store.FetchNext(ctx)
		if err != nil {
			p.logger.Error("fetch job", "err", err)
			p.sleep(ctx, time.Second)
			continue
		}
		if job == nil {
			p.sleep(ctx, p.idle)
			continue
		}
		p.run(ctx, job)
	}
}

// sleep waits for d unless the pool is stopped first.
func (p *WorkerPool) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-p.stop:
	case <-ctx.Done():
	}
}

func (p *WorkerPool) run(ctx context.Context, job *Job) {
	log := p.logger.With("job_id", job.ID, "type", job.Type)

	h, ok := p.handlers[job.Type]
	if !ok {
		job.Status = StatusFailed
		job.LastError = "no handler"
		p.observe(job.Type, StatusFailed)
		if err := p.store.MoveToDeadLetter(ctx, job); err != nil {
			log.Error("move to dead letter", "err", err)
		}
		return
	}

	err := h(ctx, job)
	if err == nil {
		job.Status = StatusDone
		p.observe(job.Type, StatusDone)
		if upErr := p.store.UpdateJob(ctx, job); upErr != nil {
			log.Error("mark job done", "err", upErr)
		}
		log.Debug("job done")
		return
	}

	job.Attempts++
	job.LastError = err.Error()
	if job.Attempts >= job.MaxAttempts || errors.Is(err, ErrPermanent) {
		job.Status = StatusFailed
		p.observe(job.Type, StatusFailed)
		log.Warn("job failed permanently", "attempts", job.Attempts, "err", err)
		if mvErr := p.store.MoveToDeadLetter(ctx, job); mvErr != nil {
			log.Error("move to dead letter", "err", mvErr)
		}
		return
	}

	backoff := BackoffDuration(job.Attempts)
	t := time.Now().Add(backoff)
	job.NextTryAt = &t
	job.Status = StatusRetry
	p.observe(job.Type, StatusRetry)
	log.Info("job scheduled for retry", "attempts", job.Attempts, "backoff", backoff, "err", err)
	if upErr := p.store.UpdateJob(ctx, job); upErr != nil {
		log.Error("update job for retry", "err", upErr)
	}
}

// Enqueue convenience helper that creates a job and persists it
func (p *WorkerPool) Enqueue(ctx context.Context, typ string, payload any, priority int, maxAttempts int) (int64, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	j := &Job{Type: typ, Payload: b, Priority: priority, MaxAttempts: maxAttempts, ScheduledAt: time.Now()}
	return p.store.Enqueue(ctx, j)
}

// Job returns a job's current state, or nil once it left the jobs table.
func (p *WorkerPool) Job(ctx context.Context, id int64) (*Job, error) {
	return p.store.GetJob(ctx, id)
}
