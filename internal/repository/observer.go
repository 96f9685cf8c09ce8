package repository

import "time"

// QueryObserver receives the latency of each named query. The metrics
// service satisfies it; repositories default to a no-op.
type QueryObserver interface {
	ObserveDBQuery(query string, duration time.Duration)
}

type noopObserver struct{}

func (noopObserver) ObserveDBQuery(string, time.Duration) {}

// observe is meant to be deferred at the top of a repository method.
func observe(obs QueryObserver, name string, start time.Time) {
	obs.ObserveDBQuery(name, time.Since(start))
}
