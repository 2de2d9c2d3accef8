package service

import (
	"context"
	"time"
)

// Resyncer schedules a catch-up pull.
type Resyncer interface {
	ReSync()
}

// ResyncJob triggers ReSync periodically. It covers change feeds that
// silently drop events and remote setups without a change feed at all.
type ResyncJob struct {
	target   Resyncer
	interval time.Duration
}

// NewResyncJob creates an idle job. A non-positive interval disables it
// and Run returns immediately.
func NewResyncJob(target Resyncer, interval time.Duration) *ResyncJob {
	return &ResyncJob{target: target, interval: interval}
}

// Enabled reports whether the job has a positive interval.
func (j *ResyncJob) Enabled() bool {
	return j.interval > 0
}

// Run triggers ReSync on every tick until ctx is done.
func (j *ResyncJob) Run(ctx context.Context) error {
	if !j.Enabled() {
		return nil
	}
	j.loop(ctx)
	return nil
}

func (j *ResyncJob) loop(ctx context.Context) {
	t := time.NewTicker(j.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			j.target.ReSync()
		}
	}
}
