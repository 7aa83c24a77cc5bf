// Package worker moves checker jobs off the request path. The goroutine
// dispatcher runs them in-process under a concurrency bound; the Kafka
// dispatcher publishes them for cmd/checkworker, which feeds them back
// through HandleMessage.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/ABNmmd/PFE-FSA/internal/checker"
	"github.com/ABNmmd/PFE-FSA/internal/report"
	"github.com/ABNmmd/PFE-FSA/pkg/kafka"
	"github.com/ABNmmd/PFE-FSA/pkg/logger"
)

// ErrDispatcherClosed is returned by Dispatch after Shutdown.
var ErrDispatcherClosed = errors.New("dispatcher closed")

// TopicJobs carries checker jobs between the API and the check workers.
const TopicJobs = "plagiarism-jobs"

// Dispatch modes accepted in configuration.
const (
	ModeGoroutine = "goroutine"
	ModeKafka     = "kafka"
)

// Executor runs a job to completion. *checker.Checker implements it.
type Executor interface {
	Execute(ctx context.Context, job checker.Job) error
}

// Dispatcher hands a job to whatever runs it. Dispatch returns once the job
// is accepted, not when it finishes.
type Dispatcher interface {
	Dispatch(ctx context.Context, job checker.Job) error
}

// GoroutineDispatcher runs jobs in goroutines, at most maxConcurrent at a
// time. Runs are detached from the dispatching request's cancellation and
// stop only when the dispatcher is closed.
type GoroutineDispatcher struct {
	exec   Executor
	sink   report.Sink
	sem    chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
	base   context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

// NewGoroutineDispatcher creates an in-process dispatcher. Panicking runs
// are recorded as failed through sink.
func NewGoroutineDispatcher(exec Executor, sink report.Sink, maxConcurrent int) *GoroutineDispatcher {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	base, cancel := context.WithCancel(context.Background())
	return &GoroutineDispatcher{
		exec:   exec,
		sink:   sink,
		sem:    make(chan struct{}, maxConcurrent),
		base:   base,
		cancel: cancel,
		logger: logger.WithComponent("dispatcher"),
	}
}

func (d *GoroutineDispatcher) Dispatch(ctx context.Context, job checker.Job) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDispatcherClosed
	}
	d.wg.Add(1)
	d.mu.Unlock()

	if job.RequestID == "" {
		job.RequestID = logger.RequestID(ctx)
	}
	runCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	unlink := context.AfterFunc(d.base, stop)

	go func() {
		defer d.wg.Done()
		defer unlink()
		defer stop()
		select {
		case d.sem <- struct{}{}:
		case <-runCtx.Done():
			d.logger.Warn("job abandoned before start", "report_id", job.ReportID)
			return
		}
		defer func() { <-d.sem }()
		d.run(runCtx, job)
	}()
	return nil
}

func (d *GoroutineDispatcher) run(ctx context.Context, job checker.Job) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("job panicked",
				"report_id", job.ReportID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			if err := d.sink.Fail(context.WithoutCancel(ctx), job.ReportID, fmt.Sprintf("internal error: %v", r)); err != nil {
				d.logger.Error("recording panic failure", "report_id", job.ReportID, "error", err)
			}
		}
	}()
	if err := d.exec.Execute(ctx, job); err != nil {
		d.logger.Warn("job finished with error", "report_id", job.ReportID, "kind", job.Kind, "error", err)
	}
}

// Wait blocks until every dispatched job has returned or ctx is done.
func (d *GoroutineDispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs, waits for in-flight ones until ctx is done
// and then cancels whatever is still running.
func (d *GoroutineDispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	err := d.Wait(ctx)
	d.cancel()
	if err != nil {
		d.logger.Warn("abandoning in-flight jobs", "error", err)
	}
	return err
}

// Publisher is the producer side of the job topic.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// KafkaDispatcher publishes jobs keyed by report id.
type KafkaDispatcher struct {
	producer Publisher
	logger   *slog.Logger
}

func NewKafkaDispatcher(p Publisher) *KafkaDispatcher {
	return &KafkaDispatcher{producer: p, logger: logger.WithComponent("kafka-dispatcher")}
}

func (d *KafkaDispatcher) Dispatch(ctx context.Context, job checker.Job) error {
	if job.RequestID == "" {
		job.RequestID = logger.RequestID(ctx)
	}
	if err := d.producer.Publish(ctx, kafka.Event{Key: job.ReportID, Value: job}); err != nil {
		return fmt.Errorf("publishing job for report %s: %w", job.ReportID, err)
	}
	d.logger.Debug("job published", "report_id", job.ReportID, "kind", job.Kind)
	return nil
}

// HandleMessage returns a Kafka MessageHandler that executes each job.
// Undecodable messages and runs that end in a recorded failure are
// committed; only an interrupted run is left for redelivery.
func HandleMessage(exec Executor) kafka.MessageHandler {
	log := logger.WithComponent("check-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		job, err := kafka.DecodeJSON[checker.Job](value)
		if err != nil {
			log.Error("failed to decode job", "error", err, "key", string(key))
			return nil
		}
		if job.RequestID == "" {
			job.RequestID = logger.RequestID(ctx)
		}
		log.Debug("processing job", "report_id", job.ReportID, "kind", job.Kind)
		if err := exec.Execute(ctx, job); err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("job %s interrupted: %w", job.ReportID, err)
			}
			log.Warn("job finished with error", "report_id", job.ReportID, "error", err)
		}
		return nil
	}
}
