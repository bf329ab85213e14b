// Package ist implements an augmented left-leaning red-black interval
// search tree: an ordered map keyed by [lo,hi] intervals whose nodes carry
// a subtree-hull augmentation, supporting overlap, point, and envelope
// queries plus bulk interval deletion in O(log n + k).
//
// The node layout and the generic search/delete skeleton are a direct
// port of rtrees/src/ist/ist_node.rs and rtrees/src/rbtree (see
// original_source in the retrieval pack): the same recurse/accept
// predicate pair drives overlap, point (at), and envelope queries, and
// delete_envelop is "collect matching keys, then delete each". The LLRB
// balancing itself follows Sedgewick's left-leaning red-black tree
// algorithm, the same family used by every mutable ordered-map Go port.
package ist

// Interval is a closed range [Lo, Hi]. Every operation on Tree treats a
// stored key this way (spec.md keys the IST by [lo, hi], inclusive hi).
type Interval struct {
	Lo, Hi uint64
}

func (a Interval) intersects(b Interval) bool { return a.Lo <= b.Hi && b.Lo <= a.Hi }

// contains reports whether b lies entirely within a.
func (a Interval) contains(b Interval) bool { return a.Lo <= b.Lo && b.Hi <= a.Hi }

func (a Interval) less(b Interval) bool {
	if a.Lo != b.Lo {
		return a.Lo < b.Lo
	}
	return a.Hi < b.Hi
}

func (a Interval) equal(b Interval) bool { return a.Lo == b.Lo && a.Hi == b.Hi }

func hull(a, b Interval) Interval {
	lo, hi := a.Lo, a.Hi
	if b.Lo < lo {
		lo = b.Lo
	}
	if b.Hi > hi {
		hi = b.Hi
	}
	return Interval{Lo: lo, Hi: hi}
}

type color bool

const (
	red   color = true
	black color = false
)

type node[V any] struct {
	key         Interval
	aug         Interval // hull of key and both children's aug
	values      []V
	left, right *node[V]
	c           color
}

func isRed[V any](n *node[V]) bool { return n != nil && n.c == red }

func newNode[V any](key Interval, v V) *node[V] {
	return &node[V]{key: key, aug: key, values: []V{v}, c: red}
}

func (n *node[V]) updateAug() {
	n.aug = n.key
	if n.left != nil {
		n.aug = hull(n.aug, n.left.aug)
	}
	if n.right != nil {
		n.aug = hull(n.aug, n.right.aug)
	}
}

func rotateLeft[V any](h *node[V]) *node[V] {
	x := h.right
	h.right = x.left
	x.left = h
	x.c = h.c
	h.c = red
	h.updateAug()
	x.updateAug()
	return x
}

func rotateRight[V any](h *node[V]) *node[V] {
	x := h.left
	h.left = x.right
	x.right = h
	x.c = h.c
	h.c = red
	h.updateAug()
	x.updateAug()
	return x
}

func flipColors[V any](h *node[V]) {
	h.c = !h.c
	h.left.c = !h.left.c
	h.right.c = !h.right.c
}

func fixUp[V any](h *node[V]) *node[V] {
	if isRed(h.right) && !isRed(h.left) {
		h = rotateLeft(h)
	}
	if isRed(h.left) && isRed(h.left.left) {
		h = rotateRight(h)
	}
	if isRed(h.left) && isRed(h.right) {
		flipColors(h)
	}
	h.updateAug()
	return h
}

// Tree is an ordered map of Interval keys to lists of values of type V.
// The zero value is an empty, ready to use tree.
type Tree[V any] struct {
	root *node[V]
	size int
}

// Size reports the number of distinct keys stored (not the number of
// values: a key with three inserted values still counts once).
func (t *Tree[V]) Size() int { return t.size }

// Insert adds v to the values list at key [lo,hi], creating the key if
// absent. lo must be <= hi.
func (t *Tree[V]) Insert(lo, hi uint64, v V) {
	if lo > hi {
		panic("ist: empty interval")
	}
	key := Interval{Lo: lo, Hi: hi}
	grew := false
	t.root = insert(t.root, key, v, &grew)
	t.root.c = black
	if grew {
		t.size++
	}
}

func insert[V any](h *node[V], key Interval, v V, grew *bool) *node[V] {
	if h == nil {
		*grew = true
		return newNode(key, v)
	}
	if isRed(h.left) && isRed(h.right) {
		flipColors(h)
	}
	switch {
	case key.equal(h.key):
		h.values = append(h.values, v)
	case key.less(h.key):
		h.left = insert(h.left, key, v, grew)
	default:
		h.right = insert(h.right, key, v, grew)
	}
	if isRed(h.right) && !isRed(h.left) {
		h = rotateLeft(h)
	}
	if isRed(h.left) && isRed(h.left.left) {
		h = rotateRight(h)
	}
	h.updateAug()
	return h
}

func moveRedLeft[V any](h *node[V]) *node[V] {
	flipColors(h)
	if isRed(h.right.left) {
		h.right = rotateRight(h.right)
		h = rotateLeft(h)
		flipColors(h)
	}
	return h
}

func moveRedRight[V any](h *node[V]) *node[V] {
	flipColors(h)
	if isRed(h.left.left) {
		h = rotateRight(h)
		flipColors(h)
	}
	return h
}

func deleteMin[V any](h *node[V]) (*node[V], *node[V]) {
	if h.left == nil {
		return nil, h
	}
	if !isRed(h.left) && !isRed(h.left.left) {
		h = moveRedLeft(h)
	}
	var min *node[V]
	h.left, min = deleteMin(h.left)
	h = fixUp(h)
	return h, min
}

// Delete removes and returns the values stored at the exact key [lo,hi].
// The second return value is false if no such key exists.
func (t *Tree[V]) Delete(lo, hi uint64) ([]V, bool) {
	if t.root == nil {
		return nil, false
	}
	key := Interval{Lo: lo, Hi: hi}
	var removed []V
	var found bool
	t.root, removed, found = deleteKey(t.root, key)
	if t.root != nil {
		t.root.c = black
	}
	if found {
		t.size--
	}
	return removed, found
}

func deleteKey[V any](h *node[V], key Interval) (*node[V], []V, bool) {
	var removed []V
	var found bool
	if key.less(h.key) {
		if h.left == nil {
			return h, nil, false
		}
		if !isRed(h.left) && !isRed(h.left.left) {
			h = moveRedLeft(h)
		}
		h.left, removed, found = deleteKey(h.left, key)
	} else {
		if isRed(h.left) {
			h = rotateRight(h)
		}
		if key.equal(h.key) && h.right == nil {
			return nil, h.values, true
		}
		if h.right == nil {
			return h, nil, false
		}
		if !isRed(h.right) && !isRed(h.right.left) {
			h = moveRedRight(h)
		}
		if key.equal(h.key) {
			removed = h.values
			found = true
			var succ *node[V]
			h.right, succ = deleteMin(h.right)
			h.key = succ.key
			h.values = succ.values
		} else {
			h.right, removed, found = deleteKey(h.right, key)
		}
	}
	h = fixUp(h)
	return h, removed, found
}

// generic search skeleton shared by Overlap/At/envelope queries: recurse
// decides whether to descend into a subtree given its hull, accept
// decides whether to include a node's values given its exact key.
func (t *Tree[V]) search(query Interval, recurse, accept func(probe, query Interval) bool) []V {
	var out []V
	var walk func(n *node[V])
	walk = func(n *node[V]) {
		if n == nil {
			return
		}
		if n.left != nil && recurse(n.left.aug, query) {
			walk(n.left)
		}
		if accept(n.key, query) {
			out = append(out, n.values...)
		}
		if n.right != nil && recurse(n.right.aug, query) {
			walk(n.right)
		}
	}
	walk(t.root)
	return out
}

func overlapRecurse(aug, q Interval) bool { return aug.intersects(q) }
func overlapAccept(key, q Interval) bool  { return key.intersects(q) }

// Overlap returns every value whose key intersects [lo,hi].
func (t *Tree[V]) Overlap(lo, hi uint64) []V {
	return t.search(Interval{Lo: lo, Hi: hi}, overlapRecurse, overlapAccept)
}

// At is shorthand for Overlap(p, p).
func (t *Tree[V]) At(p uint64) []V {
	return t.Overlap(p, p)
}

// keysEnveloped returns the keys of every node entirely inside query, in
// key order.
func (t *Tree[V]) keysEnveloped(query Interval) []Interval {
	var keys []Interval
	var walk func(n *node[V])
	walk = func(n *node[V]) {
		if n == nil {
			return
		}
		if n.left != nil && n.left.aug.intersects(query) {
			walk(n.left)
		}
		if query.contains(n.key) {
			keys = append(keys, n.key)
		}
		if n.right != nil && n.right.aug.intersects(query) {
			walk(n.right)
		}
	}
	walk(t.root)
	return keys
}

// DeleteEnvelop removes and returns every value whose key lies entirely
// within [lo,hi]: collect matching keys, then delete each.
func (t *Tree[V]) DeleteEnvelop(lo, hi uint64) []V {
	keys := t.keysEnveloped(Interval{Lo: lo, Hi: hi})
	var out []V
	for _, k := range keys {
		vs, _ := t.Delete(k.Lo, k.Hi)
		out = append(out, vs...)
	}
	return out
}

// findNode returns the node stored at the exact key, or nil.
func (t *Tree[V]) findNode(key Interval) *node[V] {
	n := t.root
	for n != nil {
		switch {
		case key.equal(n.key):
			return n
		case key.less(n.key):
			n = n.left
		default:
			n = n.right
		}
	}
	return nil
}

// DeleteValue removes and returns the first value at the exact key [lo,hi]
// for which match reports true, leaving any other values at that key in
// place. This is for registries where several values may share one key
// (e.g. several mappings aliasing the same physical range) and only one
// of them is being retired.
func (t *Tree[V]) DeleteValue(lo, hi uint64, match func(V) bool) (V, bool) {
	var zero V
	n := t.findNode(Interval{Lo: lo, Hi: hi})
	if n == nil {
		return zero, false
	}
	for i, v := range n.values {
		if !match(v) {
			continue
		}
		removed := v
		n.values = append(n.values[:i], n.values[i+1:]...)
		if len(n.values) == 0 {
			t.Delete(lo, hi)
		}
		return removed, true
	}
	return zero, false
}

// Entry is one (key, augmentation, values) triple, as yielded by Entries
// in key order. This is the shape internal/project serializes.
type Entry[V any] struct {
	Key    Interval
	Aug    Interval
	Values []V
}

// Entries returns every stored entry in ascending key order.
func (t *Tree[V]) Entries() []Entry[V] {
	var out []Entry[V]
	var walk func(n *node[V])
	walk = func(n *node[V]) {
		if n == nil {
			return
		}
		walk(n.left)
		out = append(out, Entry[V]{Key: n.key, Aug: n.aug, Values: append([]V(nil), n.values...)})
		walk(n.right)
	}
	walk(t.root)
	return out
}
