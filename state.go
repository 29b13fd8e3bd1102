package synth

import (
	"context"
	"fmt"
)

// states of the engine.
const (
	ready   int32 = iota // Ready means that engine can be started.
	running              // Running means that engine is executing at the moment.
	pausing              // Pausing means that pause was requested, but not reached yet.
	paused               // Paused means that engine is paused and can be resumed.
)

// Run executes the realtime loop. It ticks the timing manager one step at a
// time and checks the pause request at every step boundary. It returns when
// the context is done or the engine was aborted. Only one loop may be active
// per engine; pull based outputs use Step instead.
func (e *Engine) Run(ctx context.Context) (err error) {
	if !e.state.CompareAndSwap(ready, running) {
		return ErrInvalidState
	}
	e.log.Debug(fmt.Sprintf("%v is running", e))
	defer func() {
		e.release(err)
		e.state.Store(ready)
		e.log.Debug(fmt.Sprintf("%v is ready", e))
	}()
	for {
		for i := 0; i < e.blockSize; i++ {
			var ok bool
			if ok, err = e.Step(); err != nil {
				return err
			}
			if ok {
				continue
			}
			select {
			case <-e.wake:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// Step processes exactly one time step. It returns false if the engine is
// paused and no step was taken. A ready engine is started by the first
// call. Step must be called from the realtime goroutine only.
func (e *Engine) Step() (bool, error) {
	if err := e.Err(); err != nil {
		return false, err
	}
	e.state.CompareAndSwap(ready, running)
	switch e.state.Load() {
	case pausing:
		if e.state.CompareAndSwap(pausing, paused) {
			e.log.Debug(fmt.Sprintf("%v is paused at %d", e, e.timing.Now()))
			e.release(nil)
		}
		return false, nil
	case paused:
		return false, nil
	}
	e.timing.Tick()
	return true, nil
}

// Pause requests the engine to stop at the next step boundary. Returned
// channel is closed when the engine is paused. ErrInvalidState is sent if
// the engine is not running.
func (e *Engine) Pause() chan error {
	errc := make(chan error, 1)
	if !e.pending.CompareAndSwap(nil, &errc) {
		errc <- ErrInvalidState
		close(errc)
		return errc
	}
	if !e.state.CompareAndSwap(running, pausing) {
		e.pending.CompareAndSwap(&errc, nil)
		errc <- ErrInvalidState
		close(errc)
	}
	return errc
}

// Resume continues a paused engine. Returned channel is closed when the
// engine is running again. ErrInvalidState is sent if the engine is not
// paused.
func (e *Engine) Resume() chan error {
	errc := make(chan error, 1)
	if e.state.CompareAndSwap(paused, running) {
		e.log.Debug(fmt.Sprintf("%v is resumed at %d", e, e.timing.Now()))
		select {
		case e.wake <- struct{}{}:
		default:
		}
	} else {
		errc <- ErrInvalidState
	}
	close(errc)
	return errc
}

// release completes pending pause request with provided error.
func (e *Engine) release(err error) {
	errc := e.pending.Swap(nil)
	if errc == nil {
		return
	}
	if err != nil {
		*errc <- err
	}
	close(*errc)
}

// Wait for state transition or first error to occur.
func Wait(d chan error) error {
	for err := range d {
		if err != nil {
			return err
		}
	}
	return nil
}
