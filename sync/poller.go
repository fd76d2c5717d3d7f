package sync

import (
	"fmt"
	stdsync "sync"
	"time"

	"github.com/goliatone/go-backoffice/core"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/robfig/cron/v3"
)

const DefaultPollInterval = 30 * time.Second

// Poller owns a cron scheduler with at most one active subscription. A new
// subscription replaces the previous one.
type Poller struct {
	interval time.Duration
	cron     *cron.Cron
	logger   core.Logger

	mu      stdsync.Mutex
	entry   cron.EntryID
	key     string
	started bool
}

func NewPoller(interval time.Duration, logger core.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	logger = glog.Ensure(logger)
	cronLog := cronLogger{logger: logger}
	return &Poller{
		interval: interval,
		logger:   logger,
		cron: cron.New(
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
	}
}

func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Start runs the scheduler in its own goroutine.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	p.cron.Start()
}

// Stop halts the scheduler and waits for a running poll to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	<-p.cron.Stop().Done()
}

// Subscribe schedules fn every interval under key and returns its cancel
// function. Cancelling a replaced subscription is a no-op.
func (p *Poller) Subscribe(key string, fn func()) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.entry != 0 {
		p.cron.Remove(p.entry)
		p.entry = 0
	}
	entry := p.cron.Schedule(cron.Every(p.interval), cron.FuncJob(fn))
	p.entry = entry
	p.key = key
	p.logger.Debug("agenda poll subscribed", "key", key, "interval", p.interval.String())

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.entry != entry {
			return
		}
		p.cron.Remove(entry)
		p.entry = 0
		p.key = ""
	}
}

// Active returns the key of the current subscription, or "".
func (p *Poller) Active() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.key
}

// Entries reports how many jobs the scheduler holds.
func (p *Poller) Entries() int {
	return len(p.cron.Entries())
}

type cronLogger struct {
	logger core.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", fmt.Sprint(err))...)
}
