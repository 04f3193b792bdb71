package realtime

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Mode selects how hub state is serialised.
type Mode string

const (
	// ModeEventLoop runs every hub mutation on a single dispatcher goroutine.
	ModeEventLoop Mode = "eventloop"
	// ModeThreaded runs hub mutations on the calling goroutine under a mutex.
	ModeThreaded Mode = "threaded"
)

// ErrUnknownMode is returned by ParseMode.
var ErrUnknownMode = errors.New("unknown realtime async mode")

// ParseMode parses an async mode name. The empty string means ModeEventLoop.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeEventLoop, "":
		return ModeEventLoop, nil
	case ModeThreaded:
		return ModeThreaded, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// executor serialises access to hub state. exec blocks until fn has run and
// reports false, without running fn, once the executor is stopped.
type executor interface {
	exec(fn func()) bool
	stop()
}

func newExecutor(mode Mode) executor {
	if mode == ModeThreaded {
		return &lockExecutor{}
	}
	l := &eventLoop{
		tasks: make(chan func()),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go l.run()
	return l
}

type eventLoop struct {
	tasks    chan func()
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func (l *eventLoop) run() {
	defer close(l.done)
	for {
		select {
		case fn := <-l.tasks:
			fn()
		case <-l.quit:
			return
		}
	}
}

func (l *eventLoop) exec(fn func()) bool {
	finished := make(chan struct{})
	select {
	// tasks is unbuffered: once the send succeeds the loop runs the task.
	case l.tasks <- func() { fn(); close(finished) }:
	case <-l.quit:
		return false
	}
	<-finished
	return true
}

func (l *eventLoop) stop() {
	l.stopOnce.Do(func() { close(l.quit) })
	<-l.done
}

type lockExecutor struct {
	mu      sync.Mutex
	stopped bool
}

func (e *lockExecutor) exec(fn func()) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return false
	}
	fn()
	return true
}

func (e *lockExecutor) stop() {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()
}
