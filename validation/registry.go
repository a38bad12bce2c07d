package validation

import (
	"errors"

	"github.com/puzpuzpuz/xsync/v3"
)

var ErrDuplicateRequest = errors.New("validation: request id already pending")

// Registry maps pending request ids to single-use result slots. Removal is an
// atomic load-and-delete, so of Resolve and Expire racing on one id exactly
// one wins and delivers the slot's only value.
type Registry struct {
	slots *xsync.MapOf[string, chan Outcome]
}

func NewRegistry() *Registry {
	return &Registry{slots: xsync.NewMapOf[string, chan Outcome]()}
}

// Register creates the slot for id. The caller must eventually Resolve or
// Expire it.
func (r *Registry) Register(id string) (<-chan Outcome, error) {
	slot := make(chan Outcome, 1)
	if _, loaded := r.slots.LoadOrStore(id, slot); loaded {
		return nil, ErrDuplicateRequest
	}
	return slot, nil
}

// Resolve completes id with o. It reports false for an id that is unknown,
// already resolved or expired.
func (r *Registry) Resolve(id string, o Outcome) bool {
	return r.finish(id, o)
}

// Expire completes id as timed out.
func (r *Registry) Expire(id string) bool {
	return r.finish(id, failed(StatusTimedOut))
}

func (r *Registry) finish(id string, o Outcome) bool {
	slot, ok := r.slots.LoadAndDelete(id)
	if !ok {
		return false
	}
	slot <- o
	return true
}

func (r *Registry) Len() int {
	return r.slots.Size()
}
