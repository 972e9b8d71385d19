package systems

import (
	"context"
	"fmt"
	"sync"

	"github.com/spaghettifunk/dawn/engine/core"
)

// Job is one unit of work for the job system. OnComplete or OnFailure runs
// on the worker right after Run returns.
type Job struct {
	Name       string
	Run        func(ctx context.Context) error
	OnComplete func()
	OnFailure  func(err error)
}

type JobSystem struct {
	numWorkers int
	jobQueue   chan Job
	wg         sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
	// submitters blocked on a full queue
	pending sync.WaitGroup
}

var ErrNoWorkers = fmt.Errorf("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = fmt.Errorf("attempting to create worker pool with a negative channel size")
var ErrJobSystemClosed = fmt.Errorf("job system is shut down")

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan Job, channelSize),
		ctx:        ctx,
		cancel:     cancel,
	}

	js.start()

	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				js.run(job)
			}
		}()
	}
}

func (js *JobSystem) run(job Job) {
	var err error
	if js.ctx.Err() != nil {
		// queued before shutdown, never started
		err = js.ctx.Err()
	} else {
		err = job.Run(js.ctx)
	}
	if err != nil {
		core.LogDebug("job %s failed: %s", job.Name, err)
		if job.OnFailure != nil {
			job.OnFailure(err)
		}
		return
	}
	if job.OnComplete != nil {
		job.OnComplete()
	}
}

/**
 * @brief Shuts the job system down. Queued jobs that have not started fail
 * with context.Canceled, running jobs are waited for.
 */
func (js *JobSystem) Shutdown() error {
	js.mu.Lock()
	if js.closed {
		js.mu.Unlock()
		return nil
	}
	js.closed = true
	js.cancel()
	js.mu.Unlock()

	js.pending.Wait()
	close(js.jobQueue)
	js.wg.Wait()
	return nil
}

// AddWorkNonBlocking queues the job and returns immediately, even when the
// queue is full.
func (js *JobSystem) AddWorkNonBlocking(job Job) error {
	js.mu.RLock()
	defer js.mu.RUnlock()
	if js.closed {
		return ErrJobSystemClosed
	}
	select {
	case js.jobQueue <- job:
		return nil
	default:
	}
	js.pending.Add(1)
	go func() {
		defer js.pending.Done()
		select {
		case js.jobQueue <- job:
		case <-js.ctx.Done():
			if job.OnFailure != nil {
				job.OnFailure(js.ctx.Err())
			}
		}
	}()
	return nil
}

/**
 * @brief Submits the provided job to be queued for execution. Blocks while
 * the queue is full.
 */
func (js *JobSystem) Submit(job Job) error {
	js.mu.RLock()
	if js.closed {
		js.mu.RUnlock()
		return ErrJobSystemClosed
	}
	js.pending.Add(1)
	js.mu.RUnlock()
	defer js.pending.Done()

	select {
	case js.jobQueue <- job:
		return nil
	case <-js.ctx.Done():
		return ErrJobSystemClosed
	}
}
