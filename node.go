package kdtree

// Node is a box shaped region of space, either a leaf or split in two along
// one axis. Objects inserted into a node stay pending until Distribute pushes
// them down into the children.
type Node[V Volume] struct {
	tree *Tree[V]

	parent *Node[V]
	child1 *Node[V]
	child2 *Node[V]

	bounds        BoundingBox
	splitAxis     Axis
	splitLocation float64

	objects []*Object[V]

	// exact only right after a distribute
	estimate int

	// distribution is skipped while positive
	cooldown int
}

func (n *Node[V]) Tree() *Tree[V] {
	return n.tree
}

func (n *Node[V]) Bounds() BoundingBox {
	return n.bounds
}

func (n *Node[V]) Parent() *Node[V] {
	return n.parent
}

// Children returns both children, or two nils for a leaf.
func (n *Node[V]) Children() (*Node[V], *Node[V]) {
	return n.child1, n.child2
}

func (n *Node[V]) IsLeaf() bool {
	return n.child1 == nil
}

func (n *Node[V]) SplitAxis() Axis {
	return n.splitAxis
}

// SplitLocation is only meaningful when SplitAxis is valid.
func (n *Node[V]) SplitLocation() float64 {
	return n.splitLocation
}

// Objects returns the objects pending in this node. The slice is owned by the
// tree and must not be modified.
func (n *Node[V]) Objects() []*Object[V] {
	return n.objects
}

func (n *Node[V]) ObjectCount() int {
	return len(n.objects)
}

// EstimatedObjectCount is the number of objects in this subtree as of the
// last distribute, adjusted by later additions and removals on this node.
func (n *Node[V]) EstimatedObjectCount() int {
	return n.estimate
}

func (n *Node[V]) Cooldown() int {
	return n.cooldown
}

func (n *Node[V]) Depth() int {
	d := 0
	for p := n.parent; p != nil; p = p.parent {
		d++
	}
	return d
}

// VisitObjects calls fn for every pending object not yet reached during
// traversal ts. It stops early and returns false when fn does.
func (n *Node[V]) VisitObjects(ts uint32, fn func(o *Object[V]) bool) bool {
	for _, o := range n.objects {
		if !o.Visit(ts) {
			continue
		}
		if !fn(o) {
			return false
		}
	}
	return true
}

// addObject appends o to the pending list. Every object pushed into a node on
// cooldown brings the next split attempt one step closer.
func (n *Node[V]) addObject(o *Object[V]) {
	n.objects = append(n.objects, o)
	n.estimate++
	if n.cooldown > 0 {
		n.cooldown--
	}
}

// attach links o to n in both directions and gives distribution a new chance.
func (n *Node[V]) attach(o *Object[V]) {
	n.cooldown = 0
	o.addLeaf(n)
	n.addObject(o)
}

func (n *Node[V]) findObject(o *Object[V]) int {
	for i, obj := range n.objects {
		if obj == o {
			return i
		}
	}
	return -1
}

func (n *Node[V]) removeObjectAt(i int) {
	if i < 0 || i >= len(n.objects) {
		n.tree.fatalf(n, nil, "remove object: index %d out of range [0,%d)", i, len(n.objects))
	}
	last := len(n.objects) - 1
	n.objects[i] = n.objects[last]
	n.objects[last] = nil
	n.objects = n.objects[:last]
	n.estimate--
}

func (n *Node[V]) resetTimestamps() {
	for _, o := range n.objects {
		o.timestamp = 0
	}
	if n.child1 != nil {
		n.child1.resetTimestamps()
		n.child2.resetTimestamps()
	}
}
