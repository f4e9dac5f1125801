package kdtree

// Object is the handle returned by Insert. It remembers every node currently
// holding it in its pending list; an object straddling a split plane lives in
// more than one leaf at once.
type Object[V Volume] struct {
	Payload any

	volume    V
	leaves    []*Node[V]
	timestamp uint32

	// nil once the object was removed
	tree *Tree[V]
}

func (o *Object[V]) Volume() V {
	return o.volume
}

// Leaves returns the nodes holding o. The slice is owned by the tree.
func (o *Object[V]) Leaves() []*Node[V] {
	return o.leaves
}

func (o *Object[V]) Timestamp() uint32 {
	return o.timestamp
}

// Visit stamps o with traversal ts and reports whether this is the first time
// o is reached during that traversal.
func (o *Object[V]) Visit(ts uint32) bool {
	if o.timestamp == ts {
		return false
	}
	o.timestamp = ts
	return true
}

func (o *Object[V]) addLeaf(n *Node[V]) {
	o.leaves = append(o.leaves, n)
}

func (o *Object[V]) findLeaf(n *Node[V]) int {
	for i, l := range o.leaves {
		if l == n {
			return i
		}
	}
	return -1
}

func (o *Object[V]) removeLeaf(n *Node[V]) {
	i := o.findLeaf(n)
	if i == -1 {
		o.tree.fatalf(n, o, "remove leaf: node not in leaf list")
	}
	last := len(o.leaves) - 1
	o.leaves[i] = o.leaves[last]
	o.leaves[last] = nil
	o.leaves = o.leaves[:last]
}

func (o *Object[V]) replaceLeaf(old, n *Node[V]) {
	i := o.findLeaf(old)
	if i == -1 {
		o.tree.fatalf(old, o, "replace leaf: node not in leaf list")
	}
	o.leaves[i] = n
}
