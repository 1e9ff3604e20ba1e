// Package stream consumes a model's token stream for a single turn. It keeps
// one raw buffer and publishes the directive-free display projection after
// every chunk.
package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"datachat/directive"
)

// ErrIdleTimeout is returned when the upstream produced no chunk within the
// configured idle window.
var ErrIdleTimeout = errors.New("stream idle timeout")

// Source produces chunks by calling emit. It must return once ctx is done.
// A non-nil error from emit must stop the source.
type Source func(ctx context.Context, emit func(chunk string) error) error

type Options struct {
	// IdleTimeout of zero disables the idle check.
	IdleTimeout time.Duration
	Logger      *zap.Logger
}

type Consumer struct {
	idle   time.Duration
	logger *zap.Logger
}

func NewConsumer(opts Options) *Consumer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{idle: opts.IdleTimeout, logger: logger}
}

// Run drives src to completion. onDisplay receives the display projection
// each time it changes. On success onComplete receives the full raw buffer
// and Run returns nil. On failure onComplete is not called, the last display
// stays as it was, and the error is returned.
func (c *Consumer) Run(ctx context.Context, src Source, onDisplay func(string), onComplete func(string)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var idled atomic.Bool
	var timer *time.Timer
	if c.idle > 0 {
		timer = time.AfterFunc(c.idle, func() {
			idled.Store(true)
			cancel()
		})
		defer timer.Stop()
	}

	var buf strings.Builder
	shown := ""
	chunks := 0

	err := src(ctx, func(chunk string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if timer != nil {
			timer.Reset(c.idle)
		}
		chunks++
		buf.WriteString(chunk)

		if display := directive.Visible(buf.String()); display != shown {
			shown = display
			if onDisplay != nil {
				onDisplay(display)
			}
		}
		return nil
	})

	// a source that returned nil has finished, even if the idle timer fired
	// after its last chunk
	if err != nil {
		if idled.Load() {
			c.logger.Debug("stream idle", zap.Duration("idle", c.idle), zap.Int("chunks", chunks))
			return fmt.Errorf("no output for %s: %w", c.idle, ErrIdleTimeout)
		}
		c.logger.Debug("stream failed", zap.Int("chunks", chunks), zap.Error(err))
		return err
	}

	raw := buf.String()
	if final := directive.Strip(raw); final != shown && onDisplay != nil {
		onDisplay(final)
	}
	c.logger.Debug("stream complete", zap.Int("chunks", chunks), zap.Int("bytes", len(raw)))
	if onComplete != nil {
		onComplete(raw)
	}
	return nil
}

// FromChunks is a Source replaying a fixed chunk sequence.
func FromChunks(chunks ...string) Source {
	return func(ctx context.Context, emit func(string) error) error {
		for _, ch := range chunks {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := emit(ch); err != nil {
				return err
			}
		}
		return nil
	}
}
