// Package provider implements async providers — CALL data sources
// backed by real network clients, per SPEC_FULL.md §4's domain-stack
// wiring. The cooperative scheduling primitive is a goroutine feeding a
// buffered channel, the "task + channel" shape design note §9 calls out as
// sufficient for CALL's single-task model: a provider's goroutine
// produces independently, and AsyncIter.Next blocks until a row, an error,
// or completion is ready, preserving emission order.
package provider

import (
	"context"

	"github.com/flowquery-dev/flowquery/function"
)

// chanIter adapts a producer goroutine writing to a channel into a
// function.AsyncIter.
type chanIter struct {
	rows   chan function.AsyncRow
	errc   chan error
	cancel context.CancelFunc
	done   bool
}

func newChanIter(cancel context.CancelFunc) *chanIter {
	return &chanIter{
		rows:   make(chan function.AsyncRow, 16),
		errc:   make(chan error, 1),
		cancel: cancel,
	}
}

func (c *chanIter) Next() (function.AsyncRow, bool, error) {
	if c.done {
		return function.AsyncRow{}, false, nil
	}
	select {
	case row, ok := <-c.rows:
		if !ok {
			c.done = true
			select {
			case err := <-c.errc:
				return function.AsyncRow{}, false, err
			default:
				return function.AsyncRow{}, false, nil
			}
		}
		return row, true, nil
	case err := <-c.errc:
		// A row emitted before the error may still be buffered: deliver it
		// first and keep the error for the next call.
		select {
		case row, ok := <-c.rows:
			if ok {
				c.errc <- err
				return row, true, nil
			}
		default:
		}
		c.done = true
		return function.AsyncRow{}, false, err
	}
}

func (c *chanIter) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.done = true
	return nil
}

func (c *chanIter) emit(row function.AsyncRow) { c.rows <- row }
func (c *chanIter) fail(err error)             { c.errc <- err }
func (c *chanIter) finish()                    { close(c.rows) }
