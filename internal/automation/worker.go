package automation

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/matchwell/growth-plane/internal/pkg/logger"
)

// Worker polls the job queue and dispatches claimed jobs until stopped.
type Worker struct {
	queue      *Queue
	dispatcher *Dispatcher
	workerID   string
	batchSize  int
	pollEvery  time.Duration

	totalDone   int64
	totalFailed int64

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewWorker creates a queue worker. batchSize and pollEvery fall back to
// sane defaults when zero.
func NewWorker(queue *Queue, dispatcher *Dispatcher, batchSize int, pollEvery time.Duration) *Worker {
	if batchSize <= 0 {
		batchSize = 25
	}
	if pollEvery <= 0 {
		pollEvery = 5 * time.Second
	}
	host, _ := os.Hostname()
	return &Worker{
		queue:      queue,
		dispatcher: dispatcher,
		workerID:   fmt.Sprintf("%s-%s", host, uuid.New().String()[:8]),
		batchSize:  batchSize,
		pollEvery:  pollEvery,
	}
}

// Start launches the polling loop. Calling Start on a running worker is a
// no-op.
func (w *Worker) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.mu.Unlock()

	logger.Info("automation worker starting", "worker_id", w.workerID, "batch_size", w.batchSize)

	w.wg.Add(1)
	go w.loop()
}

// Stop cancels the loop and waits for in-flight jobs to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.cancel()
	w.mu.Unlock()

	w.wg.Wait()
	logger.Info("automation worker stopped",
		"worker_id", w.workerID,
		"total_done", atomic.LoadInt64(&w.totalDone),
		"total_failed", atomic.LoadInt64(&w.totalFailed))
}

// Stats returns processed/failed counters for the lifetime of the worker.
func (w *Worker) Stats() map[string]int64 {
	return map[string]int64{
		"total_done":   atomic.LoadInt64(&w.totalDone),
		"total_failed": atomic.LoadInt64(&w.totalFailed),
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
		}

		jobs, err := w.queue.ClaimBatch(w.ctx, w.workerID, w.batchSize)
		if err != nil {
			if w.ctx.Err() != nil {
				return
			}
			logger.Error("claim automation jobs", "error", err)
			time.Sleep(time.Second)
			continue
		}
		if len(jobs) == 0 {
			select {
			case <-w.ctx.Done():
				return
			case <-time.After(w.pollEvery):
			}
			continue
		}

		for _, job := range jobs {
			w.process(job)
		}
	}
}

func (w *Worker) process(job Job) {
	if err := w.dispatcher.Dispatch(w.ctx, job); err != nil {
		atomic.AddInt64(&w.totalFailed, 1)
		logger.Error("automation job failed",
			"job_id", job.ID, "kind", string(job.Kind), "attempts", job.Attempts, "error", err)
		if markErr := w.queue.MarkFailed(w.ctx, job.ID, err.Error()); markErr != nil {
			logger.Error("mark automation job failed", "job_id", job.ID, "error", markErr)
		}
		return
	}

	atomic.AddInt64(&w.totalDone, 1)
	if err := w.queue.MarkDone(w.ctx, job.ID); err != nil {
		logger.Error("mark automation job done", "job_id", job.ID, "error", err)
	}
}
