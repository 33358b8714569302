package chatsync

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs fn repeatedly until the returned Subscription is stopped.
type Scheduler interface {
	Every(interval time.Duration, fn func()) Subscription
}

// Subscription cancels future ticks. A tick already running finishes.
type Subscription interface {
	Stop()
}

// interval is a cron.Schedule with sub-second resolution; cron.Every
// truncates to whole seconds.
type interval time.Duration

func (i interval) Next(t time.Time) time.Time {
	return t.Add(time.Duration(i))
}

// CronScheduler drives polls from a single robfig/cron runner. Overlapping
// ticks of the same job are skipped and panics are recovered.
type CronScheduler struct {
	cron *cron.Cron
}

// NewCronScheduler creates and starts a scheduler.
func NewCronScheduler(logger *zap.Logger) *CronScheduler {
	l := cronLogger{logger.Sugar()}
	c := cron.New(
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
	c.Start()
	return &CronScheduler{cron: c}
}

// Every schedules fn every d, first run one interval from now.
func (s *CronScheduler) Every(d time.Duration, fn func()) Subscription {
	id := s.cron.Schedule(interval(d), cron.FuncJob(fn))
	return &cronSubscription{cron: s.cron, id: id}
}

// Close stops the runner and waits for running jobs.
func (s *CronScheduler) Close() {
	<-s.cron.Stop().Done()
}

type cronSubscription struct {
	once sync.Once
	cron *cron.Cron
	id   cron.EntryID
}

func (c *cronSubscription) Stop() {
	c.once.Do(func() { c.cron.Remove(c.id) })
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
