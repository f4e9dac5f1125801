package kdtree

// Distribute pushes the pending objects of n one level down. A leaf holding
// more than Config.MinSplitObjects objects is split first; when no axis gives
// a usable split the node goes on cooldown and its objects stay pending. A node
// on cooldown ignores Distribute until its objects change.
//
// Traversal never calls Distribute on its own. Visitors that want up to date
// children call it on the nodes they enter.
func (n *Node[V]) Distribute() {
	if len(n.objects) == 0 {
		return
	}
	if n.cooldown > 0 {
		return
	}

	if n.child1 != nil {
		n.distributeLeafObjects()
		n.estimate = n.child1.estimate + n.child2.estimate
		return
	}

	if len(n.objects) <= n.tree.cfg.MinSplitObjects {
		return
	}

	axis, loc, ok := n.chooseSplit()
	if !ok {
		n.cooldown = n.tree.cfg.DistributeCooldown
		n.estimate = len(n.objects)
		n.tree.metrics.splitRejected()
		n.tree.log.WithField("objects", len(n.objects)).
			WithField("bounds", n.bounds.String()).
			Debug("no usable split, node on cooldown")
		return
	}

	n.splitAxis = axis
	n.splitLocation = loc

	b1, b2 := n.bounds, n.bounds
	b1.SetMax(axis, loc)
	b2.SetMin(axis, loc)
	n.child1 = n.tree.createNode(n, b1)
	n.child2 = n.tree.createNode(n, b2)

	n.distributeLeafObjects()
	n.estimate = n.child1.estimate + n.child2.estimate
	n.tree.metrics.split()
}

// distributeLeafObjects moves every pending object into the child (or both
// children) its volume overlaps on the split axis.
func (n *Node[V]) distributeLeafObjects() {
	if !n.splitAxis.Valid() {
		n.tree.fatalf(n, nil, "distribute: invalid split axis %d", n.splitAxis)
	}

	for i, o := range n.objects {
		lo, hi := o.volume.MinOn(n.splitAxis), o.volume.MaxOn(n.splitAxis)
		replaced := false
		if lo-smallEpsilon <= n.splitLocation {
			o.replaceLeaf(n, n.child1)
			n.child1.addObject(o)
			replaced = true
		}
		if hi >= n.splitLocation {
			if replaced {
				o.addLeaf(n.child2)
			} else {
				o.replaceLeaf(n, n.child2)
				replaced = true
			}
			n.child2.addObject(o)
		}
		if !replaced {
			n.tree.fatalf(n, o, "distribute: object fits neither child")
		}
		n.objects[i] = nil
	}
	n.objects = n.objects[:0]
}

// FullDistribute distributes n and then every node below it, building the
// whole subtree eagerly.
func (n *Node[V]) FullDistribute() {
	n.Distribute()
	if n.child1 != nil {
		n.child1.FullDistribute()
		n.child2.FullDistribute()
	}
}
