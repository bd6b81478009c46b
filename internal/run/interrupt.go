package run

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"
)

// InterruptController turns the first operator interrupt into a one-shot
// cancellation of the run context. Later interrupts are swallowed.
type InterruptController struct {
	cancel      context.CancelFunc
	once        sync.Once
	interrupted chan struct{}
	done        chan struct{}
	stopOnce    sync.Once
	onInterrupt func()
}

// NewInterruptController derives a cancellable context from parent and, when
// source is non-nil, cancels it on the first value received from source.
// onInterrupt, if non-nil, runs once before the cancellation.
func NewInterruptController(parent context.Context, source <-chan os.Signal, onInterrupt func()) (context.Context, *InterruptController) {
	ctx, cancel := context.WithCancel(parent)
	c := &InterruptController{
		cancel:      cancel,
		interrupted: make(chan struct{}),
		done:        make(chan struct{}),
		onInterrupt: onInterrupt,
	}
	if source != nil {
		go c.listen(source)
	}
	return ctx, c
}

func (c *InterruptController) listen(source <-chan os.Signal) {
	for {
		select {
		case sig, ok := <-source:
			if !ok {
				return
			}
			log.Debug().Str("signal", sig.String()).Msg("signal received")
			c.Interrupt()
		case <-c.done:
			return
		}
	}
}

// Interrupt cancels the run. Only the first call has an effect.
func (c *InterruptController) Interrupt() {
	c.once.Do(func() {
		log.Debug().Msg("interrupt requested, cancelling run")
		if c.onInterrupt != nil {
			c.onInterrupt()
		}
		close(c.interrupted)
		c.cancel()
	})
}

// Interrupted reports whether Interrupt has fired.
func (c *InterruptController) Interrupted() bool {
	select {
	case <-c.interrupted:
		return true
	default:
		return false
	}
}

// Stop ends the listener and releases the context.
func (c *InterruptController) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		c.cancel()
	})
}

// NotifySignals subscribes to SIGINT and SIGTERM for the lifetime of a run.
func NotifySignals() (<-chan os.Signal, func()) {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	return ch, func() { signal.Stop(ch) }
}
