package export

import (
	"github.com/annel0/voxel-editor/internal/mesh"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Unweld разворачивает индексированную поверхность: у каждого треугольника
// свои три вершины, индексы идут подряд. Нужен для развёртки UV, где
// соседние треугольники получают разные координаты.
func Unweld(s *mesh.Surface) *mesh.Surface {
	out := &mesh.Surface{
		Positions: make([]mgl32.Vec3, 0, len(s.Indices)),
		Indices:   make([]uint32, 0, len(s.Indices)),
	}
	hasNormals := len(s.Normals) == len(s.Positions)
	if hasNormals {
		out.Normals = make([]mgl32.Vec3, 0, len(s.Indices))
	}
	for i, idx := range s.Indices {
		out.Positions = append(out.Positions, s.Positions[idx])
		if hasNormals {
			out.Normals = append(out.Normals, s.Normals[idx])
		}
		out.Indices = append(out.Indices, uint32(i))
	}
	return out
}

// UnwrapUVs раскладывает треугольники по квадратной сетке атласа:
// треугольник i занимает ячейку (i % n, i / n), n = ceil(sqrt(count)).
// Вершины треугольника получают углы ячейки (0,0), (1,0), (0,1).
// Ожидает развёрнутую поверхность (см. Unweld).
func UnwrapUVs(s *mesh.Surface) []mgl32.Vec2 {
	uvs := make([]mgl32.Vec2, len(s.Positions))
	triangles := s.TriangleCount()
	if triangles == 0 {
		return uvs
	}

	grid := int(math32.Ceil(math32.Sqrt(float32(triangles))))
	cell := 1 / float32(grid)

	for i := 0; i < triangles; i++ {
		base := mgl32.Vec2{float32(i%grid) * cell, float32(i/grid) * cell}
		for j := 0; j < 3; j++ {
			uv := base
			switch j {
			case 1:
				uv[0] += cell
			case 2:
				uv[1] += cell
			}
			uvs[s.Indices[i*3+j]] = uv
		}
	}
	return uvs
}

// ScaleUVTris масштабирует каждую тройку UV относительно её центра,
// оставляя зазор между ячейками атласа
func ScaleUVTris(uvs []mgl32.Vec2, scale mgl32.Vec2) {
	for i := 0; i+2 < len(uvs); i += 3 {
		center := uvs[i].Add(uvs[i+1]).Add(uvs[i+2]).Mul(1.0 / 3)
		for j := i; j < i+3; j++ {
			d := uvs[j].Sub(center)
			uvs[j] = mgl32.Vec2{center[0] + d[0]*scale[0], center[1] + d[1]*scale[1]}
		}
	}
}

// FlipV переводит UV в систему с началом в верхнем левом углу
func FlipV(uvs []mgl32.Vec2) {
	for i := range uvs {
		uvs[i][1] = 1 - uvs[i][1]
	}
}
