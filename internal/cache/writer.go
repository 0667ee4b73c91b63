package cache

import (
	"sync"

	"github.com/rs/zerolog"
)

const writeQueueSize = 64

type writeJob struct {
	key  string
	text string
	done chan struct{} // barrier for Flush
}

// writer serializes background puts on a single goroutine.
type writer struct {
	jobs   chan writeJob
	write  func(key, text string) error
	logger zerolog.Logger

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
	wg        sync.WaitGroup
}

func newWriter(write func(key, text string) error, logger zerolog.Logger) *writer {
	w := &writer{
		jobs:   make(chan writeJob, writeQueueSize),
		write:  write,
		logger: logger,
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

func (w *writer) loop() {
	defer w.wg.Done()
	for job := range w.jobs {
		if job.done != nil {
			close(job.done)
			continue
		}
		if err := w.write(job.key, job.text); err != nil {
			w.logger.Error().Err(err).Str("key", job.key).Msg("Failed to write lyrics to cache")
			continue
		}
		w.logger.Debug().Str("key", job.key).Msg("Lyrics cached")
	}
}

func (w *writer) enqueue(key, text string) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.logger.Warn().Str("key", key).Msg("Cache closed, dropping write")
		return
	}
	select {
	case w.jobs <- writeJob{key: key, text: text}:
	default:
		w.logger.Warn().Str("key", key).Msg("Cache write queue full, dropping write")
	}
}

func (w *writer) flush() {
	done := make(chan struct{})
	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return
	}
	w.jobs <- writeJob{done: done}
	w.mu.RUnlock()
	<-done
}

func (w *writer) close() {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		close(w.jobs)
		w.mu.Unlock()
		w.wg.Wait()
	})
}
