// Package model is the boundary to the generative-language backend. The
// engine talks to the Generator interface; Gemini is the production
// implementation and Scripted backs tests and the simulator.
package model

import (
	"context"
	"errors"
)

// ErrBlocked is returned when the model declines to respond for content
// safety reasons. It is terminal for the turn and never retried.
var ErrBlocked = errors.New("model declined to respond")

// Message is one transcript entry sent to the model.
type Message struct {
	Role string // "user" or "model"
	Text string
}

// Request is one full generation request: prior transcript, the latest
// player message, and the assembled system instruction.
type Request struct {
	System  string
	History []Message
	Latest  string
}

// Generator produces one model reply per request. Implementations own no
// retry or timeout policy; a call either resolves or rejects.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}
