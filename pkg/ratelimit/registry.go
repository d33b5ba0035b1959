package ratelimit

import "sync"

// Registry hands out one limiter per agent. Limiters are created lazily
// and replaced when an agent's budget changes, so a config reload takes
// effect on the next call.
type Registry struct {
	mu       sync.Mutex
	limiters map[string]*SlidingWindowLimiter
}

// NewRegistry creates an empty limiter registry.
func NewRegistry() *Registry {
	return &Registry{
		limiters: make(map[string]*SlidingWindowLimiter),
	}
}

// GetOrCreate returns the limiter for name, creating it on first use.
// A changed rpm discards the existing limiter and its recorded calls.
func (r *Registry) GetOrCreate(name string, rpm int) *SlidingWindowLimiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.limiters[name]; ok && l.RPM() == rpm {
		return l
	}
	l := NewSlidingWindowLimiter(rpm)
	r.limiters[name] = l
	return l
}

// Get returns the limiter for name if one exists.
func (r *Registry) Get(name string) (*SlidingWindowLimiter, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.limiters[name]
	return l, ok
}

// Remove drops the limiter for name.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.limiters, name)
}

// Clear drops all limiters.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.limiters = make(map[string]*SlidingWindowLimiter)
}
