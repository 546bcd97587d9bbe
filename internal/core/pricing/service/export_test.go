package service

import "time"

// SetClock replaces the clock used by the service and its circuit breaker.
func (s *PriceService) SetClock(now func() time.Time) {
	s.now = now
	s.circuitBreaker.mu.Lock()
	s.circuitBreaker.now = now
	s.circuitBreaker.mu.Unlock()
}
