package repo

import (
	"errors"
	"os"
	"os/signal"
)

// ErrInterrupted is reported by Uninterrupted when an interrupt arrived
// while the guarded function ran.
var ErrInterrupted = errors.New("repo: interrupted")

// Uninterrupted runs fn with interrupt signals deferred, so a save bracket
// cannot be cut short halfway through writing files. A signal received in
// the meantime surfaces as ErrInterrupted, joined with fn's own error, once
// fn has finished.
func Uninterrupted(fn func() error) error {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	defer signal.Stop(ch)

	err := fn()

	select {
	case <-ch:
		return errors.Join(err, ErrInterrupted)
	default:
		return err
	}
}
