package ledger

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Counter reports how many transfers a ledger has observed.
type Counter interface {
	Count() int
}

// Poller periodically reports ledger activity. It only logs; nothing
// downstream depends on it.
type Poller struct {
	cron   *cron.Cron
	source Counter
	log    *slog.Logger
	last   int
}

// NewPoller schedules a poll on spec, a standard cron expression or a
// descriptor such as "@every 30s".
func NewPoller(spec string, source Counter, log *slog.Logger) (*Poller, error) {
	p := &Poller{cron: cron.New(), source: source, log: log}
	if _, err := p.cron.AddFunc(spec, p.poll); err != nil {
		return nil, err
	}
	return p, nil
}

// Start runs the schedule in its own goroutine.
func (p *Poller) Start() { p.cron.Start() }

// Stop halts the schedule and waits for a running poll to finish.
func (p *Poller) Stop() { <-p.cron.Stop().Done() }

func (p *Poller) poll() {
	n := p.source.Count()
	p.log.Info("ledger poll", "observed_transfers", n, "new_since_last_poll", n-p.last)
	p.last = n
}
