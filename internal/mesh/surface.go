package mesh

import "github.com/go-gl/mathgl/mgl32"

// Surface набор буферов геометрии, который получает внешний рендерер:
// позиции вершин, индексы треугольников (по три на треугольник, CCW) и нормали.
type Surface struct {
	Positions []mgl32.Vec3
	Indices   []uint32
	Normals   []mgl32.Vec3
}

// VertexCount возвращает количество вершин
func (s *Surface) VertexCount() int {
	return len(s.Positions)
}

// TriangleCount возвращает количество треугольников
func (s *Surface) TriangleCount() int {
	return len(s.Indices) / 3
}

// IsEmpty возвращает true, если геометрии нет
func (s *Surface) IsEmpty() bool {
	return len(s.Indices) == 0
}

// Reset очищает буферы, сохраняя выделенную память
func (s *Surface) Reset() {
	s.Positions = s.Positions[:0]
	s.Indices = s.Indices[:0]
	s.Normals = s.Normals[:0]
}

// Clone создаёт независимую копию буферов
func (s *Surface) Clone() *Surface {
	out := &Surface{
		Positions: make([]mgl32.Vec3, len(s.Positions)),
		Indices:   make([]uint32, len(s.Indices)),
		Normals:   make([]mgl32.Vec3, len(s.Normals)),
	}
	copy(out.Positions, s.Positions)
	copy(out.Indices, s.Indices)
	copy(out.Normals, s.Normals)
	return out
}

// Translate сдвигает все вершины на offset
func (s *Surface) Translate(offset mgl32.Vec3) {
	for i := range s.Positions {
		s.Positions[i] = s.Positions[i].Add(offset)
	}
}

// FlatPositions возвращает позиции в виде плоского массива [x0,y0,z0, x1,...]
func (s *Surface) FlatPositions() []float32 {
	return flatten(s.Positions)
}

// FlatNormals возвращает нормали в виде плоского массива
func (s *Surface) FlatNormals() []float32 {
	return flatten(s.Normals)
}

func flatten(vs []mgl32.Vec3) []float32 {
	out := make([]float32, 0, len(vs)*3)
	for _, v := range vs {
		out = append(out, v[0], v[1], v[2])
	}
	return out
}
