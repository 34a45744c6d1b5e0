package mesh

import "github.com/go-gl/mathgl/mgl32"

// ComputeVertexNormals вычисляет нормали вершин как нормированную сумму
// нормалей прилегающих треугольников (взвешенных площадью).
// Вершины вне треугольников получают нулевую нормаль.
func ComputeVertexNormals(positions []mgl32.Vec3, indices []uint32) []mgl32.Vec3 {
	normals := make([]mgl32.Vec3, len(positions))

	for i := 0; i+2 < len(indices); i += 3 {
		a, b, c := indices[i], indices[i+1], indices[i+2]
		pa, pb, pc := positions[a], positions[b], positions[c]
		n := pb.Sub(pa).Cross(pc.Sub(pa))
		normals[a] = normals[a].Add(n)
		normals[b] = normals[b].Add(n)
		normals[c] = normals[c].Add(n)
	}

	for i, n := range normals {
		// mgl32.Normalize для нулевого вектора даёт Inf
		if l := n.Len(); l > 0 {
			normals[i] = n.Mul(1 / l)
		}
	}
	return normals
}

// FaceNormal возвращает единичную нормаль треугольника (нулевую для вырожденного)
func FaceNormal(a, b, c mgl32.Vec3) mgl32.Vec3 {
	n := b.Sub(a).Cross(c.Sub(a))
	if l := n.Len(); l > 0 {
		return n.Mul(1 / l)
	}
	return mgl32.Vec3{}
}
