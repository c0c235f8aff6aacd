package spectrum

// FloatsPerBar is the vertex payload of one bar: two triangles, six
// vertices, x/y each.
const FloatsPerBar = 12

// Viewport is the target surface size in pixels (or cells).
type Viewport struct {
	Width, Height int
}

// Batch is every bar sharing one color, as a flat triangle list.
type Batch struct {
	Color    uint32
	Vertices []float32
}

// Triangles returns the number of triangles in the batch.
func (b *Batch) Triangles() int {
	return len(b.Vertices) / 6
}

// Geometry is one frame of batches ordered by first color occurrence.
type Geometry struct {
	Batches []Batch
}

// Triangles returns the total triangle count.
func (g *Geometry) Triangles() int {
	n := 0
	for i := range g.Batches {
		n += g.Batches[i].Triangles()
	}
	return n
}

// Batcher builds per-color bar geometry. The returned Geometry is owned by
// the Batcher and reused by the next Build call.
type Batcher struct {
	height int
	geo    Geometry
	index  map[uint32]int
}

// NewBatcher creates a batcher for levels in 0..height.
func NewBatcher(height int) *Batcher {
	return &Batcher{
		height: height,
		index:  make(map[uint32]int),
	}
}

// Build converts snap into screen-space rectangles grouped by color.
func (b *Batcher) Build(snap *Snapshot, vp Viewport) *Geometry {
	for i := range b.geo.Batches {
		b.geo.Batches[i].Vertices = b.geo.Batches[i].Vertices[:0]
	}
	b.geo.Batches = b.geo.Batches[:0]
	clear(b.index)

	n := min(len(snap.Levels), len(snap.Colors))
	if n == 0 || vp.Width <= 0 || vp.Height <= 0 || b.height <= 0 {
		return &b.geo
	}

	barWidth := float32(vp.Width) / float32(n)
	h := float32(vp.Height)

	for i := 0; i < n; i++ {
		color := snap.Colors[i]
		bi, ok := b.index[color]
		if !ok {
			bi = len(b.geo.Batches)
			b.index[color] = bi
			if bi < cap(b.geo.Batches) {
				b.geo.Batches = b.geo.Batches[:bi+1]
				b.geo.Batches[bi].Color = color
			} else {
				b.geo.Batches = append(b.geo.Batches, Batch{Color: color})
			}
		}

		level := min(float32(snap.Levels[i]), float32(b.height))
		x1 := float32(i) * barWidth
		x2 := float32(i+1) * barWidth
		y1 := h - level/float32(b.height)*h
		y2 := h

		b.geo.Batches[bi].Vertices = append(b.geo.Batches[bi].Vertices,
			x1, y1, x2, y1, x2, y2,
			x1, y1, x2, y2, x1, y2,
		)
	}
	return &b.geo
}
