package app

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// Sender is the part of *tea.Program the emitter needs.
type Sender interface {
	Send(msg tea.Msg)
}

// Emitter delivers bridge events to a running Bubble Tea program as
// EventMsg values. Send blocks until the program reads the message, so
// bridge commands must never be issued from inside Update; the model runs
// them as tea.Cmd.
type Emitter struct {
	mu     sync.RWMutex
	target Sender
}

// Attach starts delivery to s.
func (e *Emitter) Attach(s Sender) {
	e.mu.Lock()
	e.target = s
	e.mu.Unlock()
}

// Detach stops delivery. Events emitted afterwards are dropped.
func (e *Emitter) Detach() {
	e.Attach(nil)
}

// Active reports whether a program is attached.
func (e *Emitter) Active() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.target != nil
}

func (e *Emitter) Emit(name string, payload any) {
	e.mu.RLock()
	target := e.target
	e.mu.RUnlock()
	if target != nil {
		target.Send(EventMsg{Name: name, Payload: payload})
	}
}
