package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Reminder is a scheduled due-date notification.
type Reminder struct {
	ID     string
	Title  string
	Body   string
	FireAt time.Time
}

// Sink receives reminders when their timers fire.
type Sink interface {
	Deliver(ctx context.Context, r Reminder) error
}

// LogSink writes reminders to the application log. It stands in for a real
// push-notification backend.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink builds a sink backed by the provided logger.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Deliver logs the reminder.
func (s *LogSink) Deliver(_ context.Context, r Reminder) error {
	s.logger.Info("reminder fired",
		zap.String("id", r.ID),
		zap.String("title", r.Title),
		zap.String("body", r.Body),
	)
	return nil
}

// Scheduler dispatches reminders through in-process timers, keyed by
// assignment id. Rescheduling an id replaces its pending timer.
type Scheduler struct {
	sink   Sink
	logger *zap.Logger

	mu      sync.Mutex
	timers  map[string]*time.Timer
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped bool
}

// New builds a scheduler delivering into the given sink.
func New(sink Sink, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		sink:   sink,
		logger: logger,
		timers: make(map[string]*time.Timer),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Schedule arms a timer for the reminder. A fire time already in the past
// is skipped, matching the one-day-before-due-date contract.
func (s *Scheduler) Schedule(r Reminder) {
	delay := time.Until(r.FireAt)
	if delay <= 0 {
		s.logger.Debug("reminder fire time already past, skipping", zap.String("id", r.ID))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if existing, ok := s.timers[r.ID]; ok {
		existing.Stop()
	}

	s.timers[r.ID] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}
		delete(s.timers, r.ID)
		s.wg.Add(1)
		s.mu.Unlock()

		defer s.wg.Done()
		if err := s.sink.Deliver(s.ctx, r); err != nil {
			s.logger.Warn("reminder delivery failed", zap.String("id", r.ID), zap.Error(err))
		}
	})
	s.logger.Debug("reminder scheduled", zap.String("id", r.ID), zap.Time("fire_at", r.FireAt))
}

// Cancel drops any pending reminder for the id.
func (s *Scheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
}

// Stop cancels all pending timers and waits for in-flight deliveries.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// Pending returns the number of armed timers.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
