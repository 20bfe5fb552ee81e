package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/resume-tailor/internal/types"
)

// ErrQueueFull is returned by Enqueue when every queue slot is taken
var ErrQueueFull = errors.New("job queue is full")

// ErrDispatcherStopped is returned by Enqueue after Run has returned
var ErrDispatcherStopped = errors.New("dispatcher is stopped")

// Executor runs one job to a terminal state
type Executor interface {
	Execute(ctx context.Context, tenantID, jobID string) (*types.Job, error)
}

type jobKey struct {
	tenantID string
	jobID    string
}

// Dispatcher is a bounded worker pool executing queued jobs. Workers share
// nothing but the executor, which keeps per-job state on the stack.
type Dispatcher struct {
	exec    Executor
	workers int
	queue   chan jobKey
	log     logrus.FieldLogger

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewDispatcher creates a dispatcher with the given worker count and queue capacity
func NewDispatcher(exec Executor, workers, queueSize int, log logrus.FieldLogger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Dispatcher{
		exec:    exec,
		workers: workers,
		queue:   make(chan jobKey, queueSize),
		log:     log,
		stopped: make(chan struct{}),
	}
}

// Enqueue adds a job without blocking
func (d *Dispatcher) Enqueue(ctx context.Context, tenantID, jobID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-d.stopped:
		return ErrDispatcherStopped
	default:
	}
	select {
	case d.queue <- jobKey{tenantID, jobID}:
		return nil
	default:
		return fmt.Errorf("%w (capacity %d)", ErrQueueFull, cap(d.queue))
	}
}

// Run executes queued jobs until ctx is done. A job already running when
// ctx ends is allowed to finish; jobs still queued stay QUEUED in the ledger.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer d.stopOnce.Do(func() { close(d.stopped) })

	g := new(errgroup.Group)
	for i := 0; i < d.workers; i++ {
		worker := i
		g.Go(func() error {
			log := d.log.WithField("worker", worker)
			for {
				select {
				case <-ctx.Done():
					return nil
				case k := <-d.queue:
					d.execute(context.WithoutCancel(ctx), log, k)
				}
			}
		})
	}
	d.log.WithField("workers", d.workers).Info("dispatcher started")
	err := g.Wait()
	d.log.Info("dispatcher stopped")
	return err
}

// Pending returns the number of queued jobs not yet picked up
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

func (d *Dispatcher) execute(ctx context.Context, log logrus.FieldLogger, k jobKey) {
	log = log.WithFields(logrus.Fields{"tenant_id": k.tenantID, "job_id": k.jobID})
	defer func() {
		if p := recover(); p != nil {
			log.WithField("panic", fmt.Sprint(p)).Error("job execution panicked")
		}
	}()

	job, err := d.exec.Execute(ctx, k.tenantID, k.jobID)
	var failure *types.StageFailure
	switch {
	case err == nil:
		log.WithField("status", job.Status).Debug("job finished")
	case types.IsStatusConflict(err):
		log.WithError(err).Warn("job not claimed")
	case errors.As(err, &failure):
		// already recorded on the job
	default:
		log.WithError(err).Error("job execution failed")
	}
}
