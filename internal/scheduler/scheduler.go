package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kode4food/swfcatalog/pkg/log"
)

type (
	// Scheduler runs recurring tasks at a fixed frequency, bounding each
	// invocation with a timeout
	Scheduler struct {
		now       Clock
		makeTimer TimerConstructor
		logger    *slog.Logger
		tasks     chan taskReq
		running   sync.WaitGroup
	}

	// TaskFunc is called each time a task comes due. The context is
	// cancelled when the task's timeout elapses
	TaskFunc func(context.Context) error

	// TaskDefinition describes a recurring task
	TaskDefinition struct {
		ID        string
		Fn        TaskFunc
		Frequency time.Duration
		Timeout   time.Duration
	}

	taskReqOp uint8

	taskReq struct {
		op   taskReqOp
		task *Task
		id   string
	}
)

const (
	taskReqSchedule taskReqOp = iota
	taskReqCancel
)

var (
	ErrTaskIDRequired   = errors.New("task ID is required")
	ErrTaskFuncRequired = errors.New("task function is required")
	ErrInvalidFrequency = errors.New("task frequency must be positive")
	ErrInvalidTimeout   = errors.New("task timeout must be positive")
	ErrTaskPanicked     = errors.New("task panicked")
)

// New creates a scheduler using the provided clock and timer constructor
func New(
	now Clock, makeTimer TimerConstructor, logger *slog.Logger,
) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		now:       now,
		makeTimer: makeTimer,
		logger:    logger,
		tasks:     make(chan taskReq, 100),
	}
}

// NewSystem creates a scheduler backed by the wall clock and system timers
func NewSystem(logger *slog.Logger) *Scheduler {
	return New(time.Now, NewTimer, logger)
}

// ScheduleTask registers a recurring task. The first invocation is due
// immediately and later ones follow at the task's frequency. Registering
// a task with an existing ID replaces it
func (s *Scheduler) ScheduleTask(
	ctx context.Context, def TaskDefinition,
) error {
	if err := def.Validate(); err != nil {
		return err
	}
	return s.scheduleTaskReq(ctx, taskReq{
		op:   taskReqSchedule,
		task: &Task{TaskDefinition: def, At: s.now()},
	})
}

// Cancel removes the task registered with the given ID
func (s *Scheduler) Cancel(ctx context.Context, id string) {
	_ = s.scheduleTaskReq(ctx, taskReq{op: taskReqCancel, id: id})
}

// Run processes scheduler requests until the context is cancelled
func (s *Scheduler) Run(ctx context.Context) {
	timer := s.makeTimer(0)
	var timerCh <-chan time.Time
	tasks := NewTaskHeap()

	resetTimer := func() {
		t := tasks.Peek()
		if t == nil {
			timer.Stop()
			timerCh = nil
			return
		}
		delay := max(t.At.Sub(s.now()), 0)
		timer.Reset(delay)
		timerCh = timer.Channel()
	}

	resetTimer()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case req := <-s.tasks:
			switch req.op {
			case taskReqSchedule:
				tasks.Insert(req.task)
			case taskReqCancel:
				tasks.Cancel(req.id)
			}
			resetTimer()
		case <-timerCh:
			task := tasks.PopTask()
			if task == nil {
				resetTimer()
				continue
			}
			s.invoke(ctx, task)
			task.At = s.now().Add(task.Frequency)
			tasks.Insert(task)
			resetTimer()
		}
	}
}

// Wait blocks until every in-flight task invocation has returned or been
// abandoned after its timeout
func (s *Scheduler) Wait() {
	s.running.Wait()
}

// Validate checks that a task definition can be scheduled
func (d TaskDefinition) Validate() error {
	if d.ID == "" {
		return ErrTaskIDRequired
	}
	if d.Fn == nil {
		return fmt.Errorf("%w: %s", ErrTaskFuncRequired, d.ID)
	}
	if d.Frequency <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidFrequency, d.ID)
	}
	if d.Timeout <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTimeout, d.ID)
	}
	return nil
}

func (s *Scheduler) invoke(ctx context.Context, t *Task) {
	if !t.running.CompareAndSwap(false, true) {
		s.logger.Debug("Task still running, skipping tick",
			log.TaskID(t.ID))
		return
	}
	fn, id, timeout := t.Fn, t.ID, t.Timeout
	s.running.Go(func() {
		defer t.running.Store(false)
		runCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			done <- call(runCtx, fn)
		}()

		select {
		case err := <-done:
			if err != nil {
				s.logger.Error("Scheduled task failed",
					log.TaskID(id), log.Error(err))
			}
		case <-runCtx.Done():
			s.logger.Warn("Scheduled task abandoned",
				log.TaskID(id),
				slog.Duration("timeout", timeout),
				log.Error(runCtx.Err()))
		}
	})
}

func (s *Scheduler) scheduleTaskReq(ctx context.Context, req taskReq) error {
	select {
	case s.tasks <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func call(ctx context.Context, fn TaskFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()
	return fn(ctx)
}
