package variables

import "sync"

// HandleRegistry is a value-keyed bidirectional map between a caller
// chosen string key and a monotonically allocated handle, plus the
// handle -> stored object mapping (spec §4.8 "HandleRegistry",
// value-keyed form; zero is reserved to mean "no reference").
type HandleRegistry struct {
	mu         sync.Mutex
	next       uint64
	keyToHandle map[string]uint64
	handleToKey map[uint64]string
	objects     map[uint64]interface{}
}

// NewHandleRegistry returns an empty registry. Handle 1 is the first
// one ever allocated; 0 is never returned.
func NewHandleRegistry() *HandleRegistry {
	return &HandleRegistry{
		next:        1,
		keyToHandle: make(map[string]uint64),
		handleToKey: make(map[uint64]string),
		objects:     make(map[uint64]interface{}),
	}
}

// AddObject returns the existing handle for key if already present
// (refreshing the stored object in place), otherwise allocates a new
// one.
func (r *HandleRegistry) AddObject(key string, obj interface{}) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.keyToHandle[key]; ok {
		r.objects[h] = obj
		return h
	}
	h := r.next
	r.next++
	r.keyToHandle[key] = h
	r.handleToKey[h] = key
	r.objects[h] = obj
	return h
}

// Lookup returns the object stored under handle, if any.
func (r *HandleRegistry) Lookup(handle uint64) (interface{}, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	obj, ok := r.objects[handle]
	return obj, ok
}

// HandleFor returns the handle already assigned to key, if any, without
// allocating a new one.
func (r *HandleRegistry) HandleFor(key string) (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.keyToHandle[key]
	return h, ok
}

// Release removes both directions of the mapping for handle.
func (r *HandleRegistry) Release(handle uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.handleToKey[handle]
	if !ok {
		return
	}
	delete(r.handleToKey, handle)
	delete(r.keyToHandle, key)
	delete(r.objects, handle)
}

// Clear empties the registry. The Engine does not call it: its one
// registry holds every container's objects, so ClearFrameContainers and
// DeleteAll release objects one at a time instead.
func (r *HandleRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keyToHandle = make(map[string]uint64)
	r.handleToKey = make(map[uint64]string)
	r.objects = make(map[uint64]interface{})
}

// Each calls fn for every handle->object pair currently stored. fn must
// not call back into the registry (Release/AddObject) from within the
// callback.
func (r *HandleRegistry) Each(fn func(handle uint64, obj interface{})) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for h, obj := range r.objects {
		fn(h, obj)
	}
}
