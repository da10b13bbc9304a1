package sched

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/m3rciful/makbot/core/logger"
)

// Cron runs periodic jobs on standard cron expressions.
type Cron struct {
	inner *cron.Cron
}

// NewCron builds a stopped scheduler.
func NewCron() *Cron {
	return &Cron{inner: cron.New()}
}

// Add registers a named job. Invalid specs are returned to the caller.
func (c *Cron) Add(spec, name string, job func()) error {
	_, err := c.inner.AddFunc(spec, func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error(context.Background(), "sched", "job.panic",
					slog.String("handler", name),
					slog.Any("err", r),
				)
			}
		}()
		job()
	})
	if err != nil {
		return err
	}
	logger.Info(context.Background(), "sched", "job.added",
		slog.String("handler", name),
		slog.String("mode", spec),
	)
	return nil
}

// Start launches the scheduler goroutine.
func (c *Cron) Start() {
	c.inner.Start()
}

// Stop halts scheduling and waits for running jobs to finish.
func (c *Cron) Stop() {
	ctx := c.inner.Stop()
	<-ctx.Done()
}
