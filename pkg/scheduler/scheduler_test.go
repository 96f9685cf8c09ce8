package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu        sync.Mutex
	delivered []Reminder
}

func (s *recordingSink) Deliver(_ context.Context, r Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = append(s.delivered, r)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delivered)
}

func TestSchedulerDeliversDueReminder(t *testing.T) {
	sink := &recordingSink{}
	s := New(sink, nil)
	defer s.Stop()

	s.Schedule(Reminder{ID: "a-1", Title: "Rappel", FireAt: time.Now().Add(20 * time.Millisecond)})
	require.Equal(t, 1, s.Pending())

	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 10*time.Millisecond)
	require.Equal(t, 0, s.Pending())
}

func TestSchedulerSkipsPastFireTime(t *testing.T) {
	sink := &recordingSink{}
	s := New(sink, nil)
	defer s.Stop()

	s.Schedule(Reminder{ID: "a-1", FireAt: time.Now().Add(-time.Hour)})
	require.Equal(t, 0, s.Pending())
	require.Equal(t, 0, sink.count())
}

func TestSchedulerReplaceAndCancel(t *testing.T) {
	sink := &recordingSink{}
	s := New(sink, nil)
	defer s.Stop()

	s.Schedule(Reminder{ID: "a-1", FireAt: time.Now().Add(time.Hour)})
	s.Schedule(Reminder{ID: "a-1", FireAt: time.Now().Add(2 * time.Hour)})
	require.Equal(t, 1, s.Pending())

	s.Cancel("a-1")
	require.Equal(t, 0, s.Pending())

	// Cancelling an unknown id is a no-op.
	s.Cancel("a-ghost")
}

func TestSchedulerStopPreventsNewWork(t *testing.T) {
	sink := &recordingSink{}
	s := New(sink, nil)

	s.Schedule(Reminder{ID: "a-1", FireAt: time.Now().Add(time.Hour)})
	s.Stop()
	require.Equal(t, 0, s.Pending())

	s.Schedule(Reminder{ID: "a-2", FireAt: time.Now().Add(time.Hour)})
	require.Equal(t, 0, s.Pending())
}
