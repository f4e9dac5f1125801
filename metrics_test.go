package kdtree

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "scene")
	tree := quietTree[BoundingBox](WithMetrics(m))

	a := tree.Insert(Box(0, 0, 0, 1, 1, 1), "a")
	b := tree.Insert(Box(2, 0, 0, 3, 1, 1), "b")
	require.Equal(t, 2.0, testutil.ToFloat64(m.inserts.WithLabelValues("scene")))

	tree.FullDistribute()
	require.Equal(t, 1.0, testutil.ToFloat64(m.splits.WithLabelValues("scene")))

	tree.Move(a, Box(0.5, 0, 0, 1.4, 1, 1))
	tree.Move(a, Box(40, 0, 0, 41, 1, 1))
	tree.Move(a, Box(40, 0, 0, 41, 1, 1))
	require.Equal(t, 1.0, testutil.ToFloat64(m.moves.WithLabelValues("scene", moveFast)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.moves.WithLabelValues("scene", moveClimb)))

	tree.Move(b, Box(39.5, 0, 0, 40.5, 1, 1))
	tree.FullDistribute()
	require.Equal(t, 1.0, testutil.ToFloat64(m.rejectedSplits.WithLabelValues("scene")))

	tree.Flatten()
	require.Equal(t, 1.0, testutil.ToFloat64(m.flattens.WithLabelValues("scene")))

	tree.QueryBox(Box(0, 0, 0, 1, 1, 1))
	tree.timestamp = timestampWrap + 1
	tree.TraverseUnordered(func(*Node[BoundingBox], uint32) bool { return true })
	require.Equal(t, 2.0, testutil.ToFloat64(m.traversals.WithLabelValues("scene")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.timestampWraps.WithLabelValues("scene")))

	tree.Remove(b)
	require.Equal(t, 1.0, testutil.ToFloat64(m.removals.WithLabelValues("scene")))

	s := tree.PublishStatistics()
	require.Equal(t, 1, s.Objects)
	require.Equal(t, 1.0, testutil.ToFloat64(m.objectCount.WithLabelValues("scene")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.leafCount.WithLabelValues("scene")))
	require.Equal(t, 0.0, testutil.ToFloat64(m.nodeCount.WithLabelValues("scene")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.maxDepth.WithLabelValues("scene")))
}

func TestMetricsNamed(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "first")
	first := quietTree[BoundingBox](WithMetrics(m))
	second := quietTree[BoundingBox](WithMetrics(m.Named("second")))

	first.Insert(Box(0, 0, 0, 1, 1, 1), 1)
	second.Insert(Box(0, 0, 0, 1, 1, 1), 1)
	second.Insert(Box(0, 0, 0, 1, 1, 1), 2)

	require.Equal(t, 1.0, testutil.ToFloat64(m.inserts.WithLabelValues("first")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.inserts.WithLabelValues("second")))

	count, err := testutil.GatherAndCount(reg, "kdtree_inserts_total")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	require.Nil(t, m.Named("other"))
	require.NotPanics(t, func() {
		m.inserted()
		m.moved(moveFast)
		m.Observe(Statistics{})
	})
}
