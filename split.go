package kdtree

import "math"

const (
	// margin required between two objects before a gap split is accepted
	gapMargin = 0.01
	// extents shorter than this can't be split
	degenerateExtent = 0.0001
	// objects must clear a candidate plane by this much to count as left or right
	sampleMargin = 0.0001
	// keeps objects with zero extent on the split axis from falling between children
	smallEpsilon = 0.000001

	gapQuality    = 10.0
	rejectQuality = -1.0
)

// evaluateSplit scores the best split of the pending objects along axis a.
// A negative quality means the axis can't be split usefully.
func (n *Node[V]) evaluateSplit(a Axis) (quality, location float64) {
	if len(n.objects) == 2 {
		return n.evaluateGap(a)
	}

	mina, maxa := n.objects[0].volume.MinOn(a), n.objects[0].volume.MaxOn(a)
	for _, o := range n.objects[1:] {
		mina = math.Min(mina, o.volume.MinOn(a))
		maxa = math.Max(maxa, o.volume.MaxOn(a))
	}
	mina = math.Max(mina, n.bounds.MinOn(a))
	maxa = math.Min(maxa, n.bounds.MaxOn(a))

	if maxa-mina < degenerateExtent {
		return rejectQuality, 0
	}

	samples := n.tree.cfg.SplitSamples
	count := float64(len(n.objects))
	quality = -2
	for i := 0; i < samples; i++ {
		loc := mina + float64(i+1)*(maxa-mina)/float64(samples+1)

		left, right := 0, 0
		for _, o := range n.objects {
			if o.volume.MaxOn(a) < loc-sampleMargin {
				left++
			} else if o.volume.MinOn(a) > loc+sampleMargin {
				right++
			}
		}
		cut := len(n.objects) - left - right

		q := rejectQuality
		if left > 0 && right > 0 {
			qualCut := 1 - float64(cut)/count
			qualBalance := 1 - math.Abs(float64(left-right))/count
			q = 3*qualCut + qualBalance
		}
		if q > quality {
			quality = q
			location = loc
		}
	}
	return quality, location
}

// evaluateGap handles the two object case: split in the middle of the gap
// between them, or reject when they overlap.
func (n *Node[V]) evaluateGap(a Axis) (float64, float64) {
	v0, v1 := n.objects[0].volume, n.objects[1].volume
	q, loc, ok := n.gapBetween(v0.MaxOn(a), v1.MinOn(a))
	if !ok {
		q, loc, ok = n.gapBetween(v1.MaxOn(a), v0.MinOn(a))
	}
	if !ok || loc <= n.bounds.MinOn(a) || loc >= n.bounds.MaxOn(a) {
		return rejectQuality, 0
	}
	return q, loc
}

func (n *Node[V]) gapBetween(lo, hi float64) (float64, float64, bool) {
	if lo >= hi-gapMargin {
		return 0, 0, false
	}
	// At large magnitudes the midpoint can round onto an endpoint.
	loc := lo + (hi-lo)*0.5
	if loc <= lo || loc >= hi {
		return 0, 0, false
	}
	return gapQuality, loc, true
}

// chooseSplit evaluates every axis and returns the best one. Ties go to the
// earlier axis. ok is false when no axis has a non-negative quality.
func (n *Node[V]) chooseSplit() (axis Axis, location float64, ok bool) {
	best := math.Inf(-1)
	axis = NoAxis
	for _, a := range axes {
		q, loc := n.evaluateSplit(a)
		if q >= 0 && q > best {
			best, axis, location = q, a, loc
		}
	}
	return axis, location, axis != NoAxis
}
