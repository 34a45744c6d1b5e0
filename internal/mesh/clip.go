package mesh

import "github.com/go-gl/mathgl/mgl32"

// Retain оставляет только треугольники, для которых keep возвращает true.
// keep получает центроид и единичную нормаль треугольника. Неиспользуемые
// вершины удаляются, нормали вершин (если есть) переносятся вместе с
// позициями. Возвращает количество оставшихся треугольников.
func (s *Surface) Retain(keep func(centroid, normal mgl32.Vec3) bool) int {
	hasNormals := len(s.Normals) == len(s.Positions)
	remap := make(map[uint32]uint32, len(s.Positions))

	positions := make([]mgl32.Vec3, 0, len(s.Positions))
	var normals []mgl32.Vec3
	if hasNormals {
		normals = make([]mgl32.Vec3, 0, len(s.Normals))
	}
	indices := make([]uint32, 0, len(s.Indices))

	vertex := func(old uint32) uint32 {
		if idx, ok := remap[old]; ok {
			return idx
		}
		idx := uint32(len(positions))
		positions = append(positions, s.Positions[old])
		if hasNormals {
			normals = append(normals, s.Normals[old])
		}
		remap[old] = idx
		return idx
	}

	for i := 0; i+2 < len(s.Indices); i += 3 {
		a, b, c := s.Indices[i], s.Indices[i+1], s.Indices[i+2]
		pa, pb, pc := s.Positions[a], s.Positions[b], s.Positions[c]
		centroid := mgl32.Vec3{
			(pa[0] + pb[0] + pc[0]) / 3,
			(pa[1] + pb[1] + pc[1]) / 3,
			(pa[2] + pb[2] + pc[2]) / 3,
		}
		if !keep(centroid, FaceNormal(pa, pb, pc)) {
			continue
		}
		indices = append(indices, vertex(a), vertex(b), vertex(c))
	}

	s.Positions = positions
	s.Normals = normals
	s.Indices = indices
	return len(indices) / 3
}

// ClipXZ оставляет только треугольники, центроид которых лежит в
// прямоугольнике [minX, maxX) x [minZ, maxZ) на плоскости XZ.
func (s *Surface) ClipXZ(minX, maxX, minZ, maxZ float32) int {
	return s.Retain(func(c, _ mgl32.Vec3) bool {
		return c[0] >= minX && c[0] < maxX && c[2] >= minZ && c[2] < maxZ
	})
}
