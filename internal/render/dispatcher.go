package render

import (
	"sync"

	"github.com/rs/zerolog"
)

// Dispatcher marshals frames onto the goroutine that owns the target.
// Only the newest pending frame is kept.
type Dispatcher struct {
	target  Target
	logger  zerolog.Logger
	pending chan Frame
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

func NewDispatcher(target Target, logger zerolog.Logger) *Dispatcher {
	d := &Dispatcher{
		target:  target,
		logger:  logger,
		pending: make(chan Frame, 1),
		done:    make(chan struct{}),
	}
	d.wg.Add(1)
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer d.wg.Done()
	for {
		select {
		case f := <-d.pending:
			if err := d.target.Render(f); err != nil {
				d.logger.Warn().Err(err).Msg("Render target failed")
			}
		case <-d.done:
			return
		}
	}
}

// Push never blocks: a frame still waiting to be rendered is replaced.
func (d *Dispatcher) Push(f Frame) {
	for {
		select {
		case d.pending <- f:
			return
		default:
		}
		select {
		case <-d.pending:
		default:
		}
	}
}

// Render queues f, so a Dispatcher can stand in wherever a Target is expected.
func (d *Dispatcher) Render(f Frame) error {
	d.Push(f)
	return nil
}

// Close stops the dispatcher goroutine; pending frames are discarded.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.done)
		d.wg.Wait()
	})
}
