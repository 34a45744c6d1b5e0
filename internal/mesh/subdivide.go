package mesh

import "github.com/go-gl/mathgl/mgl32"

// edgeKey неориентированное ребро (lo <= hi)
type edgeKey struct {
	lo, hi uint32
}

func makeEdgeKey(a, b uint32) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{lo: a, hi: b}
}

// Subdivide выполняет один уровень равномерного подразбиения: каждый
// треугольник заменяется четырьмя (три угловых и центральный из середин рёбер).
// Середина общего ребра создаётся один раз, поэтому работает только на
// сваренной геометрии: на несваренной швы дублируются.
// Ориентация треугольников сохраняется.
func Subdivide(positions []mgl32.Vec3, indices []uint32) ([]mgl32.Vec3, []uint32) {
	midpoints := make(map[edgeKey]uint32, len(indices))
	outIndices := make([]uint32, 0, len(indices)*4)

	midpoint := func(a, b uint32) uint32 {
		key := makeEdgeKey(a, b)
		if idx, ok := midpoints[key]; ok {
			return idx
		}
		idx := uint32(len(positions))
		positions = append(positions, positions[a].Add(positions[b]).Mul(0.5))
		midpoints[key] = idx
		return idx
	}

	for i := 0; i+2 < len(indices); i += 3 {
		a, b, c := indices[i], indices[i+1], indices[i+2]
		ab := midpoint(a, b)
		bc := midpoint(b, c)
		ca := midpoint(c, a)

		outIndices = append(outIndices,
			a, ab, ca,
			ab, b, bc,
			ca, bc, c,
			ab, bc, ca,
		)
	}

	return positions, outIndices
}
