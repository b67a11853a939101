package timer

import (
	"context"
	"sync"
	"time"

	"cortex/workspace/internal/model"
)

// Feed fans events out to subscribers. Slow subscribers miss events rather
// than stall the publisher.
type Feed struct {
	mu     sync.Mutex
	subs   map[<-chan Event]chan Event
	closed bool
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[<-chan Event]chan Event)}
}

// Subscribe registers a new observer channel.
func (f *Feed) Subscribe(buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		close(ch)
		return ch
	}
	f.subs[ch] = ch
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (f *Feed) Unsubscribe(sub <-chan Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.subs[sub]
	if !ok {
		return
	}
	delete(f.subs, sub)
	close(ch)
}

func (f *Feed) Publish(event Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Close closes every subscriber; later subscriptions get a closed channel.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for key, ch := range f.subs {
		delete(f.subs, key)
		close(ch)
	}
}

// FeedNotifier is a Notifier that announces completions on an EventSink.
type FeedNotifier struct {
	Sink EventSink
}

func (n FeedNotifier) NotifyCompletion(_ context.Context, finished model.SessionType) error {
	n.Sink.Publish(Event{
		Type:     EventNotification,
		Finished: finished,
		At:       time.Now(),
	})
	return nil
}

// FeedSound is a SoundPlayer that asks subscribers to play the tone.
type FeedSound struct {
	Sink EventSink
}

func (s FeedSound) PlayTone(_ context.Context, volume int) error {
	s.Sink.Publish(Event{
		Type:   EventTone,
		Volume: volume,
		At:     time.Now(),
	})
	return nil
}
