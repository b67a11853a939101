package tui

import (
	"context"
	"io"
	"sync"
	"time"
)

// bell rings the terminal bell as the completion tone.
type bell struct {
	mu  sync.Mutex
	out io.Writer
}

func (b *bell) PlayTone(_ context.Context, volume int) error {
	if volume <= 0 || b.out == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := io.WriteString(b.out, "\a")
	return err
}

// programExecutor runs collaborator calls on goroutines and hands their
// continuations to the bubbletea update loop through posts.
type programExecutor struct {
	posts    chan func()
	done     chan struct{}
	inflight sync.WaitGroup
}

func newProgramExecutor() *programExecutor {
	return &programExecutor{
		posts: make(chan func(), 16),
		done:  make(chan struct{}),
	}
}

func (x *programExecutor) Go(task func()) {
	x.inflight.Add(1)
	go func() {
		defer x.inflight.Done()
		task()
	}()
}

func (x *programExecutor) Post(apply func()) {
	select {
	case x.posts <- apply:
	case <-x.done:
	}
}

func (x *programExecutor) close() {
	select {
	case <-x.done:
	default:
		close(x.done)
	}
}

// wait blocks until in-flight collaborator calls return or timeout passes.
func (x *programExecutor) wait(timeout time.Duration) bool {
	finished := make(chan struct{})
	go func() {
		x.inflight.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return true
	case <-time.After(timeout):
		return false
	}
}
