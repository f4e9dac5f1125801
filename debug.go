package kdtree

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// SetDescriptor installs the function used to describe object payloads in
// dumps and fatal error reports.
func (t *Tree[V]) SetDescriptor(fn DescribeFunc) {
	t.describe = fn
}

func (t *Tree[V]) describeObject(o *Object[V]) string {
	if t != nil && t.describe != nil {
		return t.describe(o.Payload)
	}
	return fmt.Sprintf("%v %v", o.Payload, BoundsOf(o.volume))
}

// fatalf reports a broken tree structure and panics. These are programming
// errors: a handle used after removal, or bookkeeping corrupted from outside.
func (t *Tree[V]) fatalf(n *Node[V], o *Object[V], format string, args ...any) {
	msg := fmt.Sprintf(format, args...)

	var logger log.FieldLogger = log.StandardLogger()
	if t != nil {
		logger = t.log
	}

	fields := log.Fields{}
	if o != nil {
		fields["object"] = t.describeObject(o)
	}
	if n != nil {
		fields["node"] = n.bounds.String()
		pending := make([]string, 0, len(n.objects))
		for _, obj := range n.objects {
			if obj != nil {
				pending = append(pending, t.describeObject(obj))
			}
		}
		fields["pending"] = pending
	}
	logger.WithFields(fields).Error(msg)

	panic("kdtree: " + msg)
}

// CheckInvariants verifies the structure of the whole tree and returns the
// first violation found:
//   - a node has zero or two children, each pointing back to it
//   - children split the parent box exactly at the split plane
//   - the split location lies inside the node box on the split axis
//   - node pending lists and object leaf lists mirror each other, with no
//     duplicates on either side
//   - every live object is reachable
func (t *Tree[V]) CheckInvariants() error {
	if t.root.parent != nil {
		return errors.New("root has a parent")
	}

	nodes := make(map[*Node[V]]struct{})
	objects := make(map[*Object[V]]struct{})
	if err := t.checkNode(t.root, "root", nodes, objects); err != nil {
		return err
	}

	for o := range objects {
		if o.tree != t {
			return errors.Errorf("object %s: pending in a node but not live", t.describeObject(o))
		}
		for _, leaf := range o.leaves {
			if _, ok := nodes[leaf]; !ok {
				return errors.Errorf("object %s: leaf %s is not part of the tree", t.describeObject(o), leaf.bounds)
			}
			if c := countObject(leaf.objects, o); c != 1 {
				return errors.Errorf("object %s: leaf %s holds it %d times", t.describeObject(o), leaf.bounds, c)
			}
		}
	}

	if len(objects) != t.count {
		return errors.Errorf("%d objects reachable, %d live", len(objects), t.count)
	}
	return nil
}

func (t *Tree[V]) checkNode(n *Node[V], path string, nodes map[*Node[V]]struct{}, objects map[*Object[V]]struct{}) error {
	nodes[n] = struct{}{}

	if (n.child1 == nil) != (n.child2 == nil) {
		return errors.Errorf("%s: only one child", path)
	}

	if n.child1 != nil {
		a, loc := n.splitAxis, n.splitLocation
		if !a.Valid() {
			return errors.Errorf("%s: children without a split axis", path)
		}
		if loc < n.bounds.MinOn(a) || loc > n.bounds.MaxOn(a) {
			return errors.Errorf("%s: split %s=%g outside %s", path, a, loc, n.bounds)
		}

		b1, b2 := n.bounds, n.bounds
		b1.SetMax(a, loc)
		b2.SetMin(a, loc)
		if !n.child1.bounds.Equals(b1) || !n.child2.bounds.Equals(b2) {
			return errors.Errorf("%s: children %s and %s don't split %s at %s=%g",
				path, n.child1.bounds, n.child2.bounds, n.bounds, a, loc)
		}
		if n.child1.parent != n || n.child2.parent != n {
			return errors.Errorf("%s: child parent pointer mismatch", path)
		}

		if err := t.checkNode(n.child1, path+"/1", nodes, objects); err != nil {
			return err
		}
		if err := t.checkNode(n.child2, path+"/2", nodes, objects); err != nil {
			return err
		}
	}

	if len(n.objects) > cap(n.objects) {
		return errors.Errorf("%s: object list overflow", path)
	}

	for _, o := range n.objects {
		if o == nil {
			return errors.Errorf("%s: nil object pending", path)
		}
		c := 0
		for _, leaf := range o.leaves {
			if leaf == n {
				c++
			}
		}
		if c != 1 {
			return errors.Wrapf(errors.Errorf("node occurs %d times in leaf list", c),
				"%s: object %s", path, t.describeObject(o))
		}
		objects[o] = struct{}{}
	}
	return nil
}

func countObject[V Volume](objs []*Object[V], o *Object[V]) int {
	c := 0
	for _, obj := range objs {
		if obj == o {
			c++
		}
	}
	return c
}

// CheckFullyDistributed reports a node that has children but still holds
// pending objects. It only holds right after FullDistribute.
func (t *Tree[V]) CheckFullyDistributed() error {
	return checkDistributed(t.root, "root")
}

func checkDistributed[V Volume](n *Node[V], path string) error {
	if n.child1 == nil {
		return nil
	}
	if len(n.objects) != 0 {
		return errors.Errorf("%s: %d objects pending above split %s=%g", path, len(n.objects), n.splitAxis, n.splitLocation)
	}
	if err := checkDistributed(n.child1, path+"/1"); err != nil {
		return err
	}
	return checkDistributed(n.child2, path+"/2")
}

// Statistics describes the shape of a tree.
type Statistics struct {
	// Distinct live objects.
	Objects int `json:"objects"`
	// Pending references summed over all nodes. Exceeds Objects when objects
	// straddle split planes.
	References int `json:"references"`
	// Nodes with children.
	Nodes int `json:"nodes"`
	// Nodes without children.
	Leaves   int `json:"leaves"`
	MaxDepth int `json:"max_depth"`
	// Average over split nodes of 1 - |left-right|/(left+right), with left and
	// right the references below each child. 1 is perfectly balanced.
	BalanceQuality float64 `json:"balance_quality"`
}

func (s Statistics) String() string {
	return fmt.Sprintf("#o=%d #r=%d #n=%d #l=%d maxd=%d balqual=%g",
		s.Objects, s.References, s.Nodes, s.Leaves, s.MaxDepth, s.BalanceQuality)
}

func (t *Tree[V]) Statistics() Statistics {
	s := t.root.statistics()
	s.Objects = t.count
	return s
}

func (n *Node[V]) statistics() Statistics {
	var s Statistics
	balance := 0.0
	s.References = n.collectStatistics(&s, 0, &balance)
	s.Objects = n.distinctObjects()
	if s.Nodes > 0 {
		s.BalanceQuality = balance / float64(s.Nodes)
	}
	return s
}

func (n *Node[V]) collectStatistics(s *Statistics, depth int, balance *float64) int {
	depth++
	if depth > s.MaxDepth {
		s.MaxDepth = depth
	}

	refs := len(n.objects)
	if n.child1 == nil {
		s.Leaves++
		return refs
	}

	s.Nodes++
	left := n.child1.collectStatistics(s, depth, balance)
	right := n.child2.collectStatistics(s, depth, balance)
	if left+right > 0 {
		*balance += 1 - math.Abs(float64(left-right))/float64(left+right)
	} else {
		*balance++
	}
	return refs + left + right
}

func (n *Node[V]) distinctObjects() int {
	seen := make(map[*Object[V]]struct{})
	var walk func(*Node[V])
	walk = func(n *Node[V]) {
		for _, o := range n.objects {
			seen[o] = struct{}{}
		}
		if n.child1 != nil {
			walk(n.child1)
			walk(n.child2)
		}
	}
	walk(n)
	return len(seen)
}

// Dump writes an indented description of every node to w.
func (t *Tree[V]) Dump(w io.Writer) error {
	return t.dumpNode(w, t.root, 0)
}

func (t *Tree[V]) dumpNode(w io.Writer, n *Node[V], indent int) error {
	pad := strings.Repeat(" ", indent)
	if _, err := fmt.Fprintf(w, "%sKDT cooldown=%d estimate=%d\n%s    node_bbox=%s\n%s    %s\n",
		pad, n.cooldown, n.estimate, pad, n.bounds, pad, n.statistics()); err != nil {
		return errors.Wrap(err, "dump node")
	}

	if n.child1 != nil {
		if _, err := fmt.Fprintf(w, "%s  axis=%s loc=%g\n", pad, n.splitAxis, n.splitLocation); err != nil {
			return errors.Wrap(err, "dump split")
		}
		for _, o := range n.objects {
			if _, err := fmt.Fprintf(w, "%s    pending: %s\n", pad, t.describeObject(o)); err != nil {
				return errors.Wrap(err, "dump object")
			}
		}
		if err := t.dumpNode(w, n.child1, indent+2); err != nil {
			return err
		}
		return t.dumpNode(w, n.child2, indent+2)
	}

	if _, err := fmt.Fprintf(w, "%s  %d objects\n", pad, len(n.objects)); err != nil {
		return errors.Wrap(err, "dump leaf")
	}
	for _, o := range n.objects {
		if _, err := fmt.Fprintf(w, "%s    %s\n", pad, t.describeObject(o)); err != nil {
			return errors.Wrap(err, "dump object")
		}
	}
	return nil
}
