package flow

import "container/list"

// registry is an LRU index of flows. It is not safe for concurrent use.
type registry struct {
	capacity int // <= 0 means unbounded
	ll       *list.List
	items    map[Key]*list.Element
}

func newRegistry(capacity int) *registry {
	return &registry{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[Key]*list.Element),
	}
}

// get returns the flow for k and marks it as recently used.
func (r *registry) get(k Key) (*Flow, bool) {
	if elem, ok := r.items[k]; ok {
		r.ll.MoveToFront(elem)
		return elem.Value.(*Flow), true
	}
	return nil, false
}

func (r *registry) peek(k Key) (*Flow, bool) {
	if elem, ok := r.items[k]; ok {
		return elem.Value.(*Flow), true
	}
	return nil, false
}

// add inserts a new flow, returning the least recently used flow when
// the registry was full.
func (r *registry) add(f *Flow) (evicted *Flow) {
	if r.capacity > 0 && r.ll.Len() >= r.capacity {
		if back := r.ll.Back(); back != nil {
			evicted = r.ll.Remove(back).(*Flow)
			delete(r.items, evicted.Key)
		}
	}
	r.items[f.Key] = r.ll.PushFront(f)
	return evicted
}

func (r *registry) remove(k Key) bool {
	elem, ok := r.items[k]
	if !ok {
		return false
	}
	r.ll.Remove(elem)
	delete(r.items, k)
	return true
}

func (r *registry) len() int {
	return r.ll.Len()
}

// all returns the flows from most to least recently used.
func (r *registry) all() []*Flow {
	out := make([]*Flow, 0, r.ll.Len())
	for e := r.ll.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*Flow))
	}
	return out
}
