package session

import "context"

// Bootstrap initializes s from durable storage and returns the resulting
// state. It must complete before the first authenticated routing decision.
// Calling it again returns the current state without touching storage.
func Bootstrap(ctx context.Context, s *Session) State {
	s.Initialize(ctx)
	return s.State()
}
