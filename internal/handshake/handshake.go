// Package handshake provides the completion signal that lets a performance
// loop block until the sequencer reports the current section finished.
package handshake

// Synchronizer is a level-triggered one-shot handshake. Notify sets the
// signal and Wait consumes it, blocking until one arrives. Notifying with
// nobody waiting makes the next Wait return immediately, and repeated
// Notify calls collapse into a single signal, so a finished callback firing
// moments before the loop reaches its Wait is never lost and never counted
// twice.
type Synchronizer struct {
	done chan struct{}
}

// New returns a Synchronizer with no signal pending.
func New() *Synchronizer {
	return &Synchronizer{done: make(chan struct{}, 1)}
}

// Notify marks the current section complete and wakes at most one waiter.
// It never blocks.
func (s *Synchronizer) Notify() {
	select {
	case s.done <- struct{}{}:
	default:
	}
}

// Wait blocks until a completion signal arrives and consumes it.
func (s *Synchronizer) Wait() {
	<-s.done
}

// Reset discards a pending signal, if any. Normal play/wait cycles do not
// need it; it exists for recovery between independent performances.
func (s *Synchronizer) Reset() {
	select {
	case <-s.done:
	default:
	}
}
