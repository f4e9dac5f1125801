package kdtree

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func randomTree(t *testing.T, seed int64, count int) (*Tree[BoundingBox], []*Object[BoundingBox]) {
	t.Helper()
	tree := quietTree[BoundingBox]()
	r := rand.New(rand.NewSource(seed))
	objects := make([]*Object[BoundingBox], 0, count)
	for i := 0; i < count; i++ {
		objects = append(objects, tree.Insert(randomBox(r), i))
	}
	return tree, objects
}

func TestLazyTraversalReachesEveryObject(t *testing.T) {
	tree, objects := randomTree(t, 10, 300)

	for pass := 0; pass < 3; pass++ {
		seen := objectSet(tree)
		require.Len(t, seen, len(objects))
		for _, c := range seen {
			require.Equal(t, 1, c)
		}
		require.NoError(t, tree.CheckInvariants())
	}
	require.False(t, tree.Root().IsLeaf())
}

func TestTraversalWithoutDistribute(t *testing.T) {
	tree, objects := randomTree(t, 11, 100)

	visited := 0
	tree.TraverseFrontToBack(Vec3{}, func(n *Node[BoundingBox], ts uint32) bool {
		visited++
		return true
	})
	require.Equal(t, 1, visited)

	tree.FullDistribute()
	seen := 0
	tree.TraverseFrontToBack(Vec3{X: 10}, func(n *Node[BoundingBox], ts uint32) bool {
		n.VisitObjects(ts, func(*Object[BoundingBox]) bool {
			seen++
			return true
		})
		return true
	})
	require.Equal(t, len(objects), seen)
}

func TestTraversalPrunesChildren(t *testing.T) {
	tree, _ := randomTree(t, 12, 100)
	tree.FullDistribute()
	require.False(t, tree.Root().IsLeaf())

	var visited []*Node[BoundingBox]
	tree.TraverseUnordered(func(n *Node[BoundingBox], ts uint32) bool {
		visited = append(visited, n)
		return false
	})
	require.Equal(t, []*Node[BoundingBox]{tree.Root()}, visited)
}

func TestVisitObjectsStopsEarly(t *testing.T) {
	tree, _ := randomTree(t, 13, 10)

	calls := 0
	ts := tree.NewTraversal()
	done := tree.Root().VisitObjects(ts, func(*Object[BoundingBox]) bool {
		calls++
		return calls < 3
	})
	require.False(t, done)
	require.Equal(t, 3, calls)
}

// Leaves reached front to back from the origin of a ray are entered in order
// of increasing distance along that ray, and so are the objects reported in
// them, taking the part of each object inside the leaf that reports it.
func TestFrontToBackOrder(t *testing.T) {
	tree, _ := randomTree(t, 14, 500)
	tree.FullDistribute()
	r := rand.New(rand.NewSource(15))

	objects := 0
	for i := 0; i < 50; i++ {
		ray := Ray{
			Origin: Vec3{X: rnd(r, 120) - 60, Y: rnd(r, 120) - 60, Z: rnd(r, 120) - 60},
			Dir:    Vec3{X: rnd(r, 2) - 1, Y: rnd(r, 2) - 1, Z: rnd(r, 2) - 1},
		}

		last := 0.0
		farthest := 0.0
		leaves := 0
		tree.TraverseFrontToBack(ray.Origin, func(n *Node[BoundingBox], ts uint32) bool {
			d, ok := ray.IntersectBox(n.Bounds())
			if !ok {
				return false
			}
			if !n.IsLeaf() {
				return true
			}

			require.GreaterOrEqual(t, d, last-1e-6)
			require.GreaterOrEqual(t, d, farthest-1e-6)
			last = d
			leaves++

			n.VisitObjects(ts, func(o *Object[BoundingBox]) bool {
				part := o.Volume().Intersection(n.Bounds())
				if part.IsEmpty() {
					return true
				}
				od, ok := ray.IntersectBox(part)
				if !ok {
					return true
				}
				require.GreaterOrEqual(t, od, d-1e-6)
				farthest = math.Max(farthest, od)
				objects++
				return true
			})
			return true
		})
		require.Greater(t, leaves, 0)
	}
	require.Greater(t, objects, 0)
}

func TestTimestampWrap(t *testing.T) {
	tree, objects := randomTree(t, 16, 50)
	tree.FullDistribute()

	tree.timestamp = timestampWrap
	seen := objectSet(tree)
	require.Len(t, seen, len(objects))
	for _, o := range objects {
		require.Equal(t, timestampWrap+1, o.Timestamp())
	}

	require.Equal(t, uint32(1), tree.NewTraversal())
	for _, o := range objects {
		require.Equal(t, uint32(0), o.Timestamp())
	}

	require.Len(t, objectSet(tree), len(objects))
	require.Equal(t, uint32(2), tree.timestamp)
}

func TestQueryBox(t *testing.T) {
	tree, objects := randomTree(t, 17, 500)
	r := rand.New(rand.NewSource(18))

	for i := 0; i < 30; i++ {
		query := randomBox(r)
		query.Max = query.Max.Add(Vec3{X: 10, Y: 10, Z: 10})

		var want []*Object[BoundingBox]
		for _, o := range objects {
			if o.Volume().Intersects(query) {
				want = append(want, o)
			}
		}

		got := tree.QueryBox(query)
		require.ElementsMatch(t, want, got)
		require.NoError(t, tree.CheckInvariants())
	}
}

func TestQueryBoxSpheres(t *testing.T) {
	tree := quietTree[Sphere]()
	near := tree.Insert(Sphere{Center: Vec3{X: 0, Y: 0, Z: 0}, Radius: 1}, "near")
	tree.Insert(Sphere{Center: Vec3{X: 10, Y: 10, Z: 10}, Radius: 1}, "far")
	// Bounds overlap the query corner, the sphere itself doesn't.
	tree.Insert(Sphere{Center: Vec3{X: 3.9, Y: 3.9, Z: 3.9}, Radius: 1}, "corner")
	tree.FullDistribute()

	got := tree.QueryBox(Box(-1, -1, -1, 3.2, 3.2, 3.2))
	require.Equal(t, []*Object[Sphere]{near}, got)
}

func TestCollect(t *testing.T) {
	tree, objects := randomTree(t, 19, 300)
	tree.FullDistribute()

	half := func(b BoundingBox) bool { return b.Max.X >= 0 }
	var want []*Object[BoundingBox]
	for _, o := range objects {
		if half(o.Volume()) {
			want = append(want, o)
		}
	}
	require.ElementsMatch(t, want, tree.Collect(half))

	none := tree.Collect(func(BoundingBox) bool { return false })
	require.Empty(t, none)
}

func TestRaycast(t *testing.T) {
	tree, objects := randomTree(t, 20, 500)
	r := rand.New(rand.NewSource(21))

	hits := 0
	for i := 0; i < 100; i++ {
		ray := Ray{
			Origin: Vec3{X: -80, Y: rnd(r, 100) - 50, Z: rnd(r, 100) - 50},
			Dir:    Vec3{X: 1, Y: rnd(r, .4) - .2, Z: rnd(r, .4) - .2},
		}

		want := math.Inf(1)
		for _, o := range objects {
			if d, ok := ray.IntersectBox(o.Volume()); ok && d < want {
				want = d
			}
		}

		o, d, ok := tree.Raycast(ray, 0)
		if math.IsInf(want, 1) {
			require.False(t, ok)
			require.Nil(t, o)
			continue
		}
		hits++
		require.True(t, ok)
		require.InDelta(t, want, d, 1e-9)
		got, _ := ray.IntersectBox(o.Volume())
		require.InDelta(t, want, got, 1e-9)
	}
	require.Greater(t, hits, 0)
	require.NoError(t, tree.CheckInvariants())
}

func TestRaycastMaxDistance(t *testing.T) {
	tree := quietTree[BoundingBox]()
	tree.Insert(Box(10, -1, -1, 11, 1, 1), "wall")
	ray := Ray{Dir: Vec3{X: 1}}

	_, _, ok := tree.Raycast(ray, 5)
	require.False(t, ok)

	o, d, ok := tree.Raycast(ray, 20)
	require.True(t, ok)
	require.Equal(t, "wall", o.Payload)
	require.Equal(t, 10.0, d)
}

func generateTree(count int) (*Tree[Sphere], []*Object[Sphere]) {
	r := rand.New(rand.NewSource(1313131313))
	tree := quietTree[Sphere]()

	objects := make([]*Object[Sphere], 0, count)
	for n := 0; n < count; n++ {
		p := &Person{
			size:     1,
			position: Vec3{X: float64(r.Intn(10000)), Y: float64(r.Intn(10000)), Z: float64(r.Intn(10000))},
		}
		objects = append(objects, tree.Insert(p.Volume(), p))
	}
	tree.FullDistribute()

	return tree, objects
}

var gunshot = Ray{Dir: Vec3{X: 45, Y: 45}}

func treeRaycast(b *testing.B, count int) {
	tree, _ := generateTree(count)

	// Only the queries are measured, not building the tree
	b.ResetTimer()

	for n := 0; n < b.N; n++ {
		tree.Raycast(gunshot, 0)
	}
}

func BenchmarkRaycastTree_1000(b *testing.B)   { treeRaycast(b, 1000) }
func BenchmarkRaycastTree_10000(b *testing.B)  { treeRaycast(b, 10000) }
func BenchmarkRaycastTree_100000(b *testing.B) { treeRaycast(b, 100000) }

func loopRaycast(b *testing.B, count int) {
	_, objects := generateTree(count)

	raycast := func() (hit *Object[Sphere]) {
		best := math.Inf(1)
		for _, o := range objects {
			if d, ok := gunshot.IntersectBox(BoundsOf(o.Volume())); ok && d < best {
				best, hit = d, o
			}
		}
		return
	}

	b.ResetTimer()

	for n := 0; n < b.N; n++ {
		raycast()
	}
}

func BenchmarkRaycastLoop_1000(b *testing.B)   { loopRaycast(b, 1000) }
func BenchmarkRaycastLoop_10000(b *testing.B)  { loopRaycast(b, 10000) }
func BenchmarkRaycastLoop_100000(b *testing.B) { loopRaycast(b, 100000) }
