package audio

import (
	"errors"
	"sync"
	"testing"
	"time"
)

var errFake = errors.New("fake driver error")

// fakeStream stands in for a driver stream. For blocking use, each Read
// consumes the next entry of readErrs and fills buf with fill.
type fakeStream struct {
	mu         sync.Mutex
	starts     int
	stops      int
	closes     int
	recovers   int
	reads      int
	startErr   error
	recoverErr error
	readErrs   []error
	buf        []int16
	fill       int16
}

func (s *fakeStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts++
	return s.startErr
}

func (s *fakeStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	return nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *fakeStream) Recover() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recovers++
	return s.recoverErr
}

func (s *fakeStream) Read() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if len(s.readErrs) > 0 {
		err := s.readErrs[0]
		s.readErrs = s.readErrs[1:]
		if err != nil {
			return err
		}
	}
	for i := range s.buf {
		s.buf[i] = s.fill
	}
	s.fill++
	return nil
}

func (s *fakeStream) counts() (starts, stops, closes, recovers int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts, s.stops, s.closes, s.recovers
}

// within fails the test if fn does not return before the deadline.
func within(t *testing.T, d time.Duration, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("operation did not complete within %s", d)
	}
}
