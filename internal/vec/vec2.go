package vec

import "math"

// Vec2 представляет координаты в горизонтальной плоскости XZ.
// Используется в первую очередь как координата чанка (cx, cz).
type Vec2 struct {
	X, Z int
}

// FloorDiv выполняет целочисленное деление с округлением вниз.
// В отличие от оператора /, для отрицательных a результат не усекается к нулю:
// FloorDiv(-1, 10) == -1.
func FloorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// FloorMod возвращает неотрицательный остаток от деления (для b > 0).
// FloorMod(-1, 10) == 9.
func FloorMod(a, b int) int {
	m := a % b
	if m != 0 && ((m < 0) != (b < 0)) {
		m += b
	}
	return m
}

// ToChunkCoords преобразует глобальные координаты вокселя в координаты чанка
func (v Vec2) ToChunkCoords(size int) Vec2 {
	return Vec2{X: FloorDiv(v.X, size), Z: FloorDiv(v.Z, size)}
}

// LocalInChunk возвращает локальные координаты внутри чанка
func (v Vec2) LocalInChunk(size int) Vec2 {
	return Vec2{X: FloorMod(v.X, size), Z: FloorMod(v.Z, size)}
}

// Add складывает два вектора
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Z: v.Z + other.Z}
}

// Less задаёт стабильный порядок обхода чанков (сначала X, затем Z)
func (v Vec2) Less(other Vec2) bool {
	if v.X != other.X {
		return v.X < other.X
	}
	return v.Z < other.Z
}

// DistanceTo вычисляет расстояние до другой точки
func (v Vec2) DistanceTo(other Vec2) float64 {
	dx := float64(v.X - other.X)
	dz := float64(v.Z - other.Z)
	return math.Sqrt(dx*dx + dz*dz)
}
