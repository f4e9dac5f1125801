package kdtree

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	treeLabel = "tree"
	pathLabel = "path"

	moveFast  = "fast"
	moveClimb = "climb"
)

// Metrics instruments one or more trees. All methods accept a nil receiver so
// a tree built without WithMetrics pays nothing.
type Metrics struct {
	name string

	inserts        *prometheus.CounterVec
	removals       *prometheus.CounterVec
	moves          *prometheus.CounterVec
	splits         *prometheus.CounterVec
	rejectedSplits *prometheus.CounterVec
	flattens       *prometheus.CounterVec
	traversals     *prometheus.CounterVec
	timestampWraps *prometheus.CounterVec
	objectCount    *prometheus.GaugeVec
	nodeCount      *prometheus.GaugeVec
	leafCount      *prometheus.GaugeVec
	maxDepth       *prometheus.GaugeVec
	balanceQuality *prometheus.GaugeVec
}

// NewMetrics registers the kdtree collectors on reg. Series are labelled with
// name; use Named for further trees on the same registry.
func NewMetrics(reg prometheus.Registerer, name string) *Metrics {
	factory := promauto.With(reg)
	counter := func(metric, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kdtree",
			Name:      metric,
			Help:      help,
		}, append([]string{treeLabel}, labels...))
	}
	gauge := func(metric, help string) *prometheus.GaugeVec {
		return factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "kdtree",
			Name:      metric,
			Help:      help,
		}, []string{treeLabel})
	}

	return &Metrics{
		name: name,

		inserts:        counter("inserts_total", "The number of inserted objects."),
		removals:       counter("removals_total", "The number of removed objects."),
		moves:          counter("moves_total", "The number of moved objects by code path.", pathLabel),
		splits:         counter("splits_total", "The number of nodes split by distribution."),
		rejectedSplits: counter("rejected_splits_total", "The number of split attempts that found no usable plane."),
		flattens:       counter("flattens_total", "The number of flattened subtrees."),
		traversals:     counter("traversals_total", "The number of traversals started."),
		timestampWraps: counter("timestamp_wraps_total", "The number of traversal timestamp resets."),
		objectCount:    gauge("objects", "The number of live objects."),
		nodeCount:      gauge("nodes", "The number of split nodes."),
		leafCount:      gauge("leaves", "The number of leaf nodes."),
		maxDepth:       gauge("max_depth", "The depth of the deepest leaf."),
		balanceQuality: gauge("balance_quality", "The average split balance, 1 being perfect."),
	}
}

// Named returns metrics sharing the collectors of m under another tree label,
// for trees registered on the same registry.
func (m *Metrics) Named(name string) *Metrics {
	if m == nil {
		return nil
	}
	c := *m
	c.name = name
	return &c
}

// inc requires a non-nil m.
func (m *Metrics) inc(c *prometheus.CounterVec, labels ...string) {
	c.WithLabelValues(append([]string{m.name}, labels...)...).Inc()
}

func (m *Metrics) inserted() {
	if m != nil {
		m.inc(m.inserts)
	}
}

func (m *Metrics) removed() {
	if m != nil {
		m.inc(m.removals)
	}
}

func (m *Metrics) moved(path string) {
	if m != nil {
		m.inc(m.moves, path)
	}
}

func (m *Metrics) split() {
	if m != nil {
		m.inc(m.splits)
	}
}

func (m *Metrics) splitRejected() {
	if m != nil {
		m.inc(m.rejectedSplits)
	}
}

func (m *Metrics) flattened() {
	if m != nil {
		m.inc(m.flattens)
	}
}

func (m *Metrics) traversed() {
	if m != nil {
		m.inc(m.traversals)
	}
}

func (m *Metrics) timestampWrapped() {
	if m != nil {
		m.inc(m.timestampWraps)
	}
}

// Observe publishes tree statistics as gauges.
func (m *Metrics) Observe(s Statistics) {
	if m == nil {
		return
	}
	m.objectCount.WithLabelValues(m.name).Set(float64(s.Objects))
	m.nodeCount.WithLabelValues(m.name).Set(float64(s.Nodes))
	m.leafCount.WithLabelValues(m.name).Set(float64(s.Leaves))
	m.maxDepth.WithLabelValues(m.name).Set(float64(s.MaxDepth))
	m.balanceQuality.WithLabelValues(m.name).Set(s.BalanceQuality)
}

// PublishStatistics computes the statistics of t and hands them to the
// metrics configured with WithMetrics.
func (t *Tree[V]) PublishStatistics() Statistics {
	s := t.Statistics()
	t.metrics.Observe(s)
	return s
}
