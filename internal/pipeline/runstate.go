// Package pipeline turns chat messages into speech. A Loop polls a chat
// source while the RunState says so and hands every message to the
// Orchestrator, which answers from a canned rule or from the language model
// and queues the reply for the speaker. Pipeline is the start/stop surface
// the CLI and TUI drive.
package pipeline

import "sync"

// RunState is the shared flag that keeps the ingestion loop going. All
// methods are safe for concurrent use and never block beyond the mutex.
type RunState struct {
	mu      sync.Mutex
	running bool
}

// Start sets the flag. Starting twice is a no-op.
func (s *RunState) Start() {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
}

// Stop clears the flag. Stopping twice is a no-op.
func (s *RunState) Stop() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

func (s *RunState) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
