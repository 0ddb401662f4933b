// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package managed

// backgroundWorker is the single goroutine per managed dtable that
// serializes digest/combine/maintain work requested with background=true,
// grounded on original_source/managed_dtable.h's bg_thread.h/msg_queue.h
// description (spec.md §4.4) and implemented the Go way: a buffered
// channel stands in for the condvar-guarded request queue. Every result
// is deposited into bgToken, the capacity-1 channel modeling the
// original's background_loan/background_join token: loaning starts a
// request, joining takes the latest result not yet joined, blocking
// until one is deposited.
func (m *Managed) backgroundWorker() {
	for req := range m.bgCh {
		err := req.op()
		select {
		case m.bgToken <- err:
		default:
			// A previous result was never joined; replace it so the
			// latest outcome is the one BackgroundJoin observes.
			select {
			case <-m.bgToken:
			default:
			}
			m.bgToken <- err
		}
	}
}

// runBackground hands op to the background worker and returns
// immediately; the caller observes its outcome via BackgroundJoin.
func (m *Managed) runBackground(op func() error) error {
	m.bgCh <- bgRequest{op: op}
	return nil
}

// BackgroundLoan schedules op on the background worker without blocking,
// the explicit form of the token-exchange spec.md §4.4/§9 describes:
// "background_loan" hands maintenance work to the worker thread.
func (m *Managed) BackgroundLoan(op func() error) {
	m.bgCh <- bgRequest{op: op}
}

// BackgroundJoin returns the error of the latest background operation
// that has completed and not yet been joined, blocking until one
// completes if none is waiting. With several operations queued it can
// return while later ones are still running. It is the counterpart to
// BackgroundLoan ("background_join" in spec.md §4.4/§9). Background
// combine/digest cannot be cancelled once under way — only joined, per
// spec.md §5's cancellation note.
func (m *Managed) BackgroundJoin() error {
	return <-m.bgToken
}
