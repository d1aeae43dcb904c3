package transfer

import "sync"

// Registry indexes live sessions by id. It holds no session state of its own.
type Registry struct {
	sessions sync.Map
}

func NewRegistry() *Registry {
	return &Registry{}
}

// add stores s unless the id is taken.
func (r *Registry) add(s *Session) bool {
	_, loaded := r.sessions.LoadOrStore(s.id, s)
	return !loaded
}

func (r *Registry) Get(id string) (*Session, bool) {
	v, ok := r.sessions.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

func (r *Registry) Remove(id string) {
	r.sessions.Delete(id)
}

// Cancel requests cancellation of a live session and reports whether it existed.
func (r *Registry) Cancel(id string) bool {
	s, ok := r.Get(id)
	if !ok {
		return false
	}
	s.Cancel()
	return true
}

// Snapshot returns the live sessions at the time of the call.
func (r *Registry) Snapshot() []*Session {
	var out []*Session
	r.sessions.Range(func(_, v any) bool {
		out = append(out, v.(*Session))
		return true
	})
	return out
}

func (r *Registry) Len() int {
	n := 0
	r.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
