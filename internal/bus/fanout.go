// Package bus provides in-process broadcast of a hot stream to multiple
// independent consumers. One publisher goroutine writes; each consumer
// holds its own buffered subscription channel, so a slow consumer never
// blocks the pipeline (its overflow is dropped and counted instead).
package bus

import (
	"context"
	"log"
	"sync"
)

// FanOut broadcasts values from a single producer to N output channels.
// Values are delivered to all subscribers in publish order; the fan-out
// introduces no cross-message reordering.
type FanOut[T any] struct {
	mu      sync.RWMutex
	outputs []chan T
	bufSize int
	closed  bool

	// OnDrop is called when a value is dropped for a subscriber.
	// subscriberIdx is the 0-based index of the slow consumer.
	OnDrop func(subscriberIdx int)
}

// New creates a FanOut with the given buffer size for output channels.
func New[T any](outputBufferSize int) *FanOut[T] {
	return &FanOut[T]{
		bufSize: outputBufferSize,
	}
}

// Subscribe creates and returns a new output channel.
func (f *FanOut[T]) Subscribe() <-chan T {
	ch := make(chan T, f.bufSize)
	f.mu.Lock()
	if f.closed {
		close(ch)
	} else {
		f.outputs = append(f.outputs, ch)
	}
	f.mu.Unlock()
	return ch
}

// Publish delivers v to every subscriber, dropping it for any whose
// buffer is full.
func (f *FanOut[T]) Publish(v T) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}
	for i, ch := range f.outputs {
		select {
		case ch <- v:
		default:
			if f.OnDrop != nil {
				f.OnDrop(i)
			} else {
				log.Printf("[bus] output channel %d full, dropping message", i)
			}
		}
	}
}

// Run reads from the input channel and fans out to all subscribers.
// Blocks until ctx is cancelled or input is closed, then closes all
// subscriber channels.
func (f *FanOut[T]) Run(ctx context.Context, input <-chan T) {
	defer f.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-input:
			if !ok {
				return
			}
			f.Publish(v)
		}
	}
}

// Close completes all subscriber channels. Safe to call multiple times.
func (f *FanOut[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for _, ch := range f.outputs {
		close(ch)
	}
}

// ChannelStat reports (length, capacity) for a subscriber channel.
// Used for channel saturation gauges.
type ChannelStat struct {
	Len int
	Cap int
}

// ChannelStats returns the stats of every subscriber channel.
func (f *FanOut[T]) ChannelStats() []ChannelStat {
	f.mu.RLock()
	defer f.mu.RUnlock()
	stats := make([]ChannelStat, len(f.outputs))
	for i, ch := range f.outputs {
		stats[i] = ChannelStat{Len: len(ch), Cap: cap(ch)}
	}
	return stats
}
