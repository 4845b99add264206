// Package keepalive terminates the agent when no records were written for
// too long, so the service manager can restart it.
package keepalive

import (
	"log"
	"os"
	"sync"
	"time"
)

// ExitCode is used when the watchdog kills the process.
const ExitCode = 42

type Watchdog struct {
	killAfterSilence time.Duration
	check            time.Duration
	onSilence        func()
	keepAlive        chan struct{}
	done             chan struct{}
	exited           chan struct{}
	stopOnce         sync.Once
}

// New starts a watchdog that exits the process after killAfterSilence
// without Kick.
func New(killAfterSilence time.Duration) *Watchdog {
	return newWatchdog(killAfterSilence, 10*time.Second, func() {
		log.Printf("error: no records written for %s, exiting", killAfterSilence)
		os.Exit(ExitCode)
	})
}

func newWatchdog(killAfterSilence, check time.Duration, onSilence func()) *Watchdog {
	if check > killAfterSilence {
		check = killAfterSilence
	}
	w := Watchdog{
		killAfterSilence: killAfterSilence,
		check:            check,
		onSilence:        onSilence,
		keepAlive:        make(chan struct{}),
		done:             make(chan struct{}),
		exited:           make(chan struct{}),
	}
	go w.run()
	return &w
}

// Kick resets the silence timer.
func (w *Watchdog) Kick() {
	select {
	case w.keepAlive <- struct{}{}:
	case <-w.done:
	case <-w.exited:
	}
}

func (w *Watchdog) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
}

func (w *Watchdog) run() {
	defer close(w.exited)
	t := time.NewTicker(w.check)
	defer t.Stop()
	lastKeepAlive := time.Now()
	for {
		select {
		case <-t.C:
			if time.Since(lastKeepAlive) > w.killAfterSilence {
				w.onSilence()
				return
			}
		case <-w.keepAlive:
			lastKeepAlive = time.Now()
		case <-w.done:
			return
		}
	}
}
