package mounter

import (
	"sync"

	"github.com/pkg/errors"
)

// Instance is a live chart created by a Runner.
type Instance struct {
	ID       string
	CanvasID string
	// OnDestroy runs when the instance is destroyed, if set.
	OnDestroy func() error
}

// Registry enumerates and destroys live chart instances. The mounter never
// reaches into a library's global state; it only talks to a Registry.
type Registry interface {
	Instances() []Instance
	Destroy(Instance) error
}

// HandleRegistry is the mounter-owned registry of chart handles.
type HandleRegistry struct {
	mu    sync.Mutex
	order []string
	items map[string]Instance
}

func NewHandleRegistry() *HandleRegistry {
	return &HandleRegistry{items: make(map[string]Instance)}
}

func (r *HandleRegistry) Register(inst Instance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[inst.ID]; !ok {
		r.order = append(r.order, inst.ID)
	}
	r.items[inst.ID] = inst
}

func (r *HandleRegistry) Instances() []Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Instance, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.items[id])
	}
	return out
}

// Destroy removes inst and runs its destroy hook. Unknown instances are
// ignored.
func (r *HandleRegistry) Destroy(inst Instance) error {
	r.mu.Lock()
	stored, ok := r.items[inst.ID]
	if ok {
		delete(r.items, inst.ID)
		for i, id := range r.order {
			if id == inst.ID {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	r.mu.Unlock()

	if !ok || stored.OnDestroy == nil {
		return nil
	}
	return errors.Wrapf(stored.OnDestroy(), "destroy chart %s", inst.ID)
}

func (r *HandleRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}
