package kdtree

import "math"

// Once the counter passes this value every object timestamp is cleared and
// counting restarts at 1.
const timestampWrap uint32 = 4000000000

// VisitFunc is called for every node reached by a traversal. Returning false
// skips the children of n. ts identifies the traversal and is used with
// Node.VisitObjects or Object.Visit to report each object once.
type VisitFunc[V Volume] func(n *Node[V], ts uint32) bool

// HitTest decides whether a box is of interest to a query.
type HitTest func(box BoundingBox) bool

// NewTraversal returns a fresh timestamp for a traversal.
func (t *Tree[V]) NewTraversal() uint32 {
	if t.timestamp > timestampWrap {
		t.root.resetTimestamps()
		t.timestamp = 1
		t.metrics.timestampWrapped()
		t.log.Debug("traversal timestamp wrapped, object timestamps reset")
	} else {
		t.timestamp++
	}
	return t.timestamp
}

// TraverseUnordered visits the tree depth first, child1 before child2.
func (t *Tree[V]) TraverseUnordered(visit VisitFunc[V]) {
	ts := t.NewTraversal()
	t.metrics.traversed()
	t.root.traverseUnordered(visit, ts)
}

func (n *Node[V]) traverseUnordered(visit VisitFunc[V], ts uint32) {
	if !visit(n, ts) {
		return
	}
	if n.child1 != nil {
		n.child1.traverseUnordered(visit, ts)
		n.child2.traverseUnordered(visit, ts)
	}
}

// TraverseFrontToBack visits the tree depth first, entering the child on the
// same side of each split plane as pos first. Nodes come out roughly ordered
// by distance from pos.
func (t *Tree[V]) TraverseFrontToBack(pos Vec3, visit VisitFunc[V]) {
	ts := t.NewTraversal()
	t.metrics.traversed()
	t.root.traverseFrontToBack(pos, visit, ts)
}

func (n *Node[V]) traverseFrontToBack(pos Vec3, visit VisitFunc[V], ts uint32) {
	if !visit(n, ts) {
		return
	}
	if n.child1 == nil {
		return
	}
	if Component(pos, n.splitAxis) <= n.splitLocation {
		n.child1.traverseFrontToBack(pos, visit, ts)
		n.child2.traverseFrontToBack(pos, visit, ts)
	} else {
		n.child2.traverseFrontToBack(pos, visit, ts)
		n.child1.traverseFrontToBack(pos, visit, ts)
	}
}

// Collect returns every object whose bounds pass test, skipping subtrees whose
// node box fails it. Visited nodes are distributed on the way down.
func (t *Tree[V]) Collect(test HitTest) (hits []*Object[V]) {
	t.TraverseUnordered(func(n *Node[V], ts uint32) bool {
		if !test(n.bounds) {
			return false
		}
		n.Distribute()
		n.VisitObjects(ts, func(o *Object[V]) bool {
			if test(BoundsOf(o.volume)) {
				hits = append(hits, o)
			}
			return true
		})
		return true
	})
	return
}

// QueryBox returns every object whose volume intersects b.
func (t *Tree[V]) QueryBox(b BoundingBox) (hits []*Object[V]) {
	t.TraverseUnordered(func(n *Node[V], ts uint32) bool {
		if !n.bounds.Intersects(b) {
			return false
		}
		n.Distribute()
		n.VisitObjects(ts, func(o *Object[V]) bool {
			if o.volume.Intersects(b) {
				hits = append(hits, o)
			}
			return true
		})
		return true
	})
	return
}

// Raycast returns the object whose bounds r enters first, together with the
// entry distance in units of r.Dir. Hits beyond maxDist are ignored; a
// non-positive maxDist means no limit.
func (t *Tree[V]) Raycast(r Ray, maxDist float64) (*Object[V], float64, bool) {
	best := maxDist
	if best <= 0 {
		best = math.Inf(1)
	}
	var hit *Object[V]

	t.TraverseFrontToBack(r.Origin, func(n *Node[V], ts uint32) bool {
		if d, ok := r.IntersectBox(n.bounds); !ok || d > best {
			return false
		}
		n.Distribute()
		n.VisitObjects(ts, func(o *Object[V]) bool {
			if d, ok := r.IntersectBox(BoundsOf(o.volume)); ok && d <= best {
				best, hit = d, o
			}
			return true
		})
		return true
	})

	if hit == nil {
		return nil, 0, false
	}
	return hit, best, true
}
