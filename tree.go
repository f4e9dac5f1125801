package kdtree

import (
	log "github.com/sirupsen/logrus"
)

// Config holds the tuning knobs of a tree. The zero value of a field selects
// its default.
type Config struct {
	// A leaf is only split when it holds more objects than this.
	MinSplitObjects int `toml:"min_split_objects" json:"min_split_objects"`
	// Number of skipped Distribute calls after a failed split attempt.
	DistributeCooldown int `toml:"distribute_cooldown" json:"distribute_cooldown"`
	// Candidate planes sampled per axis when three or more objects are split.
	SplitSamples int `toml:"split_samples" json:"split_samples"`
	// Half size of the root box.
	RootExtent float64 `toml:"root_extent" json:"root_extent"`
}

func DefaultConfig() Config {
	return Config{
		MinSplitObjects:    1,
		DistributeCooldown: 20,
		SplitSamples:       20,
		RootExtent:         100000,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MinSplitObjects < 1 {
		c.MinSplitObjects = def.MinSplitObjects
	}
	if c.DistributeCooldown < 1 {
		c.DistributeCooldown = def.DistributeCooldown
	}
	if c.SplitSamples < 1 {
		c.SplitSamples = def.SplitSamples
	}
	if c.RootExtent <= 0 {
		c.RootExtent = def.RootExtent
	}
	return c
}

// DescribeFunc renders an object payload for debug output.
type DescribeFunc func(payload any) string

type settings struct {
	cfg      Config
	log      log.FieldLogger
	metrics  *Metrics
	describe DescribeFunc
}

type Option func(*settings)

func WithConfig(cfg Config) Option {
	return func(s *settings) { s.cfg = cfg }
}

func WithLogger(l log.FieldLogger) Option {
	return func(s *settings) { s.log = l }
}

func WithMetrics(m *Metrics) Option {
	return func(s *settings) { s.metrics = m }
}

func WithDescriptor(fn DescribeFunc) Option {
	return func(s *settings) { s.describe = fn }
}

// Tree is a dynamic KD-tree over objects with a bounding volume of type V.
// It is not safe for concurrent use.
type Tree[V Volume] struct {
	root *Node[V]

	cfg      Config
	log      log.FieldLogger
	metrics  *Metrics
	describe DescribeFunc

	count     int
	timestamp uint32

	unusedNodes []*Node[V]
}

func NewTree[V Volume](opts ...Option) *Tree[V] {
	s := settings{cfg: DefaultConfig(), log: log.StandardLogger()}
	for _, opt := range opts {
		opt(&s)
	}

	t := &Tree[V]{
		cfg:       s.cfg.withDefaults(),
		log:       s.log,
		metrics:   s.metrics,
		describe:  s.describe,
		timestamp: 1,

		unusedNodes: make([]*Node[V], 0),
	}
	t.root = t.createNode(nil, t.rootBounds())

	return t
}

func (t *Tree[V]) rootBounds() BoundingBox {
	e := t.cfg.RootExtent
	return Box(-e, -e, -e, e, e, e)
}

func (t *Tree[V]) Root() *Node[V] {
	return t.root
}

func (t *Tree[V]) Config() Config {
	return t.cfg
}

// Len returns the number of live objects.
func (t *Tree[V]) Len() int {
	return t.count
}

func (t *Tree[V]) createNode(parent *Node[V], bounds BoundingBox) (n *Node[V]) {
	if len(t.unusedNodes) > 0 {
		n, t.unusedNodes = t.unusedNodes[len(t.unusedNodes)-1], t.unusedNodes[:len(t.unusedNodes)-1]
	} else {
		n = &Node[V]{}
	}

	n.tree = t
	n.parent = parent
	n.bounds = bounds
	n.splitAxis = NoAxis

	return
}

func (t *Tree[V]) freeNode(n *Node[V]) {
	if len(n.objects) != 0 {
		t.fatalf(n, nil, "free node: %d objects still pending", len(n.objects))
	}

	n.parent = nil
	n.child1 = nil
	n.child2 = nil
	n.splitAxis = NoAxis
	n.splitLocation = 0
	n.estimate = 0
	n.cooldown = 0

	t.unusedNodes = append(t.unusedNodes, n)
}

// Insert adds a new object to the root. It is pushed down lazily by later
// calls to Distribute.
func (t *Tree[V]) Insert(v V, payload any) *Object[V] {
	o := &Object[V]{
		Payload: payload,
		volume:  v,
		leaves:  make([]*Node[V], 0, 2),
		tree:    t,
	}
	t.root.attach(o)
	t.count++
	t.metrics.inserted()
	return o
}

// Remove detaches o from every node holding it. o must not be used afterwards.
func (t *Tree[V]) Remove(o *Object[V]) {
	t.checkLive(o, "remove")
	t.unlink(o)
	o.tree = nil
	o.leaves = nil
	t.count--
	t.metrics.removed()
}

func (t *Tree[V]) unlink(o *Object[V]) {
	for _, leaf := range o.leaves {
		i := leaf.findObject(o)
		if i == -1 {
			t.fatalf(leaf, o, "unlink: object missing from leaf")
		}
		leaf.removeObjectAt(i)
		leaf.cooldown = 0
	}
	for i := range o.leaves {
		o.leaves[i] = nil
	}
	o.leaves = o.leaves[:0]
}

// Move updates the volume of o. When o sits in a single node that still
// contains v only the volume changes. Otherwise o climbs from its first leaf to
// the nearest ancestor containing v, falling back to the root.
func (t *Tree[V]) Move(o *Object[V], v V) {
	t.checkLive(o, "move")
	if len(o.leaves) == 0 {
		t.fatalf(nil, o, "move: object has no leaves")
	}

	if sameExtent(o.volume, v) {
		o.volume = v
		return
	}

	if len(o.leaves) == 1 && o.leaves[0].bounds.ContainsVolume(v) {
		o.volume = v
		o.leaves[0].cooldown = 0
		t.metrics.moved(moveFast)
		return
	}

	o.volume = v
	n := o.leaves[0]
	t.unlink(o)
	for n.parent != nil && !n.bounds.ContainsVolume(v) {
		n = n.parent
	}
	n.attach(o)
	t.metrics.moved(moveClimb)
}

// FullDistribute builds the whole tree eagerly.
func (t *Tree[V]) FullDistribute() {
	t.root.FullDistribute()
}

// Flatten collapses the whole tree back into the root.
func (t *Tree[V]) Flatten() {
	t.root.Flatten()
}

// Flatten merges every object of the subtree below n into n and frees the
// descendants. Objects that were split over several leaves end up referenced
// once.
func (n *Node[V]) Flatten() {
	if n.child1 == nil {
		return
	}

	n.cooldown = 0
	n.flattenTo(n)

	n.tree.metrics.flattened()
	n.tree.log.WithField("objects", len(n.objects)).
		WithField("depth", n.Depth()).
		Debug("flattened subtree")
}

func (n *Node[V]) flattenTo(top *Node[V]) {
	if n.child1 == nil {
		return
	}

	n.child1.flattenTo(top)
	n.child2.flattenTo(top)

	c1, c2 := n.child1, n.child2
	n.child1, n.child2 = nil, nil
	n.splitAxis = NoAxis
	n.splitLocation = 0

	top.absorb(c1)
	top.absorb(c2)
	n.tree.freeNode(c1)
	n.tree.freeNode(c2)

	n.estimate = len(n.objects)
}

// absorb moves the pending objects of c into n, collapsing duplicate
// membership.
func (n *Node[V]) absorb(c *Node[V]) {
	for i, o := range c.objects {
		switch {
		case len(o.leaves) == 1:
			if o.leaves[0] != c {
				n.tree.fatalf(c, o, "flatten: single leaf is not the child")
			}
			o.leaves[0] = n
			n.addObject(o)
		case o.findLeaf(n) == -1:
			o.replaceLeaf(c, n)
			n.addObject(o)
		default:
			o.removeLeaf(c)
		}
		c.objects[i] = nil
	}
	c.objects = c.objects[:0]
}

// Clear removes every object and node. Handles obtained before are invalid.
func (t *Tree[V]) Clear() {
	t.clearNode(t.root)
	t.count = 0
	t.timestamp = 1
	t.root = t.createNode(nil, t.rootBounds())
}

func (t *Tree[V]) clearNode(n *Node[V]) {
	for i, o := range n.objects {
		o.removeLeaf(n)
		if len(o.leaves) == 0 {
			o.tree = nil
		}
		n.objects[i] = nil
	}
	n.objects = n.objects[:0]
	if n.child1 != nil {
		t.clearNode(n.child1)
		t.clearNode(n.child2)
	}
	t.freeNode(n)
}

func (t *Tree[V]) checkLive(o *Object[V], op string) {
	if o == nil {
		t.fatalf(nil, nil, "%s: nil object", op)
	}
	if o.tree != t {
		t.fatalf(nil, o, "%s: object is not in this tree", op)
	}
}
