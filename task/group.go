// Package task runs a group of long-lived goroutines which start together,
// are cancelled together, and are waited on together.
package task

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Group is a group of tasks which should each be executed concurrently,
// and which should be collectively blocked on until all are complete.
// The first task to return a non-nil error cancels the Group. Group is
// not itself thread-safe: tasks are queued by a single goroutine before
// GoRun.
type Group struct {
	// ctx is cancelled by a task returning an error, by Cancel, or by
	// cancellation of the parent Context. Tasks must monitor it.
	ctx      context.Context
	cancelFn context.CancelFunc

	tasks   []task
	eg      *errgroup.Group
	started bool
}

type task struct {
	desc string
	fn   func() error
}

// NewGroup returns a new, empty Group with the given parent Context.
func NewGroup(ctx context.Context) *Group {
	ctx, cancel := context.WithCancel(ctx)
	eg, ctx := errgroup.WithContext(ctx)
	return &Group{ctx: ctx, eg: eg, cancelFn: cancel}
}

// Context returns the Group Context.
func (g *Group) Context() context.Context { return g.ctx }

// Cancel the Group Context.
func (g *Group) Cancel() { g.cancelFn() }

// Queue a function for execution with the Group. Queue panics if called
// after GoRun.
func (g *Group) Queue(desc string, fn func() error) {
	if g.started {
		panic("Queue called after GoRun")
	}
	g.tasks = append(g.tasks, task{desc: desc, fn: fn})
}

// GoRun all queued functions. GoRun panics if called more than once.
func (g *Group) GoRun() {
	if g.started {
		panic("GoRun already called")
	}
	g.started = true

	for i := range g.tasks {
		var t = g.tasks[i]
		g.eg.Go(func() error {
			var err = t.fn()
			log.WithFields(log.Fields{"task": t.desc, "err": err}).Debug("task exited")
			return errors.WithMessage(err, t.desc)
		})
	}
}

// QueueOnCancel queues |fn| to run once the Group is cancelled. It's used
// to stop servers whose Serve tasks are also queued with the Group.
func (g *Group) QueueOnCancel(desc string, fn func()) {
	g.Queue(desc, func() error {
		<-g.ctx.Done()
		fn()
		return nil
	})
}

// QueuePeriodic queues |fn| to run every |interval| until the Group is
// cancelled. A failed run is logged and doesn't cancel the Group: it's
// retried at the next interval.
func (g *Group) QueuePeriodic(desc string, interval time.Duration, fn func() error) {
	g.Queue(desc, func() error {
		var ticker = time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-g.ctx.Done():
				return nil
			case <-ticker.C:
			}
			if err := fn(); err != nil {
				log.WithFields(log.Fields{"task": desc, "err": err}).Warn("periodic task failed")
			}
		}
	})
}

// QueueSignalWatch queues a task which cancels the Group upon receiving
// any of |sigs|.
func (g *Group) QueueSignalWatch(sigs ...os.Signal) {
	var signalCh = make(chan os.Signal, 1)
	signal.Notify(signalCh, sigs...)

	g.Queue("watch signals", func() error {
		defer signal.Stop(signalCh)

		select {
		case sig := <-signalCh:
			log.WithField("signal", sig).Info("caught signal")
			g.Cancel()
		case <-g.ctx.Done():
		}
		return nil
	})
}

// Wait for started functions, returning only after all complete.
// The first non-nil error is returned. Wait panics if GoRun wasn't called.
func (g *Group) Wait() error {
	if !g.started {
		panic("Wait called before GoRun")
	}
	return g.eg.Wait()
}
