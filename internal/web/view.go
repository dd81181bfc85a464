package web

import (
	"sync"

	"calgrid/internal/model"
)

// ViewHolder owns the server-wide navigation state. Transitions replace
// the state as a whole.
type ViewHolder struct {
	mu    sync.Mutex
	state model.ViewState
}

// NewViewHolder returns a holder starting at s.
func NewViewHolder(s model.ViewState) *ViewHolder {
	return &ViewHolder{state: s}
}

// Get returns the current state.
func (h *ViewHolder) Get() model.ViewState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Apply replaces the state with fn(current) and returns the new state.
func (h *ViewHolder) Apply(fn func(model.ViewState) model.ViewState) model.ViewState {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = fn(h.state)
	return h.state
}
