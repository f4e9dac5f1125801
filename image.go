package kdtree

import (
	"image"
	"image/color"
	"image/draw"
	"io"
	"math"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
)

// Larger extents are scaled down to fit this many pixels per side.
const maxImageSide = 2048

var (
	nodeColor   = color.RGBA{255, 0, 0, 255}
	objectColor = color.RGBA{0, 255, 0, 255}
)

// Image writes a BMP of the XY projection of the tree to path. Node boxes are
// drawn in red, object bounds in green. One pixel is one unit of space unless
// the objects span more than maxImageSide units.
func (t *Tree[V]) Image(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create image file")
	}
	defer f.Close()

	if err := t.WriteImage(f); err != nil {
		return err
	}
	return errors.Wrap(f.Close(), "close image file")
}

func (t *Tree[V]) WriteImage(w io.Writer) error {
	return errors.Wrap(bmp.Encode(w, t.render()), "encode bmp")
}

func (t *Tree[V]) render() *image.RGBA {
	// The root box is huge, so the picture is cropped to the objects.
	extent := BoundingBox{
		Min: Vec3{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)},
		Max: Vec3{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)},
	}
	var nodes []BoundingBox
	var objects []BoundingBox
	t.TraverseUnordered(func(n *Node[V], ts uint32) bool {
		if n != t.root {
			nodes = append(nodes, n.bounds)
		}
		n.VisitObjects(ts, func(o *Object[V]) bool {
			b := BoundsOf(o.volume)
			objects = append(objects, b)
			extent = extent.Expand(b)
			return true
		})
		return true
	})
	if len(objects) == 0 {
		extent = Box(0, 0, 0, 0, 0, 0)
	}

	scale := 1.0
	if side := math.Max(extent.Max.X-extent.Min.X, extent.Max.Y-extent.Min.Y); side >= maxImageSide {
		scale = maxImageSide / side
	}
	px := func(x float64) int { return min(int((x-extent.Min.X)*scale), maxImageSide-1) }
	py := func(y float64) int { return min(int((y-extent.Min.Y)*scale), maxImageSide-1) }

	frame := image.NewRGBA(image.Rect(0, 0, px(extent.Max.X)+1, py(extent.Max.Y)+1))
	draw.Draw(frame, frame.Bounds(), &image.Uniform{color.Black}, image.Point{}, draw.Src)

	hline := func(x1, y, x2 int, col color.Color) {
		for ; x1 <= x2; x1++ {
			frame.Set(x1, y, col)
		}
	}
	vline := func(x, y1, y2 int, col color.Color) {
		for ; y1 <= y2; y1++ {
			frame.Set(x, y1, col)
		}
	}
	rect := func(b BoundingBox, col color.Color) {
		b.Min.Z, b.Max.Z = extent.Min.Z, extent.Max.Z
		b = b.Intersection(extent)
		if b.IsEmpty() {
			return
		}
		x1, y1, x2, y2 := px(b.Min.X), py(b.Min.Y), px(b.Max.X), py(b.Max.Y)
		hline(x1, y1, x2, col)
		hline(x1, y2, x2, col)
		vline(x1, y1, y2, col)
		vline(x2, y1, y2, col)
	}

	for _, b := range nodes {
		rect(b, nodeColor)
	}
	for _, b := range objects {
		rect(b, objectColor)
	}
	return frame
}
