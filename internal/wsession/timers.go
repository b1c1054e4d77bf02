package wsession

import (
	"context"
	"time"
)

// startInterviewBackstop runs the 45-minute interview cap independently of
// the client-reported time_update heartbeat (spec.md §4.7): a dropped or
// stalled client must not let review phase slip indefinitely.
func (s *Session) startInterviewBackstop(sessionID string) {
	s.mu.Lock()
	if s.stopBackstop != nil {
		close(s.stopBackstop)
	}
	stop := make(chan struct{})
	s.stopBackstop = stop
	s.reviewDeadline = time.Now().Add(interviewDuration)
	s.mu.Unlock()

	go func() {
		timer := time.NewTimer(interviewDuration)
		defer timer.Stop()
		select {
		case <-timer.C:
			s.enterReviewPhase(context.Background())
		case <-stop:
		}
	}()
}

// stopInterviewBackstop cancels a running backstop timer, if any. Safe to
// call even when none was ever started.
func (s *Session) stopInterviewBackstop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopBackstop != nil {
		close(s.stopBackstop)
		s.stopBackstop = nil
	}
}
