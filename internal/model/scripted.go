package model

import (
	"context"
	"fmt"
	"sync"
)

// Scripted replays a fixed sequence of replies. It records every request it
// receives, which makes transcript assembly observable in tests and lets the
// simulator run without network access.
type Scripted struct {
	mu       sync.Mutex
	replies  []string
	err      error
	next     int
	Requests []Request
}

// NewScripted returns a generator that yields the given replies in order.
func NewScripted(replies ...string) *Scripted {
	return &Scripted{replies: replies}
}

// Fail makes every subsequent call return err.
func (s *Scripted) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Generate returns the next scripted reply.
func (s *Scripted) Generate(_ context.Context, req Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Requests = append(s.Requests, req)
	if s.err != nil {
		return "", s.err
	}
	if s.next >= len(s.replies) {
		return "", fmt.Errorf("scripted generator exhausted after %d replies", len(s.replies))
	}
	reply := s.replies[s.next]
	s.next++
	return reply, nil
}
