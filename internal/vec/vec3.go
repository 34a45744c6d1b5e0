package vec

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Vec3 представляет трехмерный вектор с целочисленными координатами (координата вокселя)
type Vec3 struct {
	X int
	Y int
	Z int
}

// XZ отбрасывает вертикальную координату
func (v Vec3) XZ() Vec2 {
	return Vec2{X: v.X, Z: v.Z}
}

// DistanceSq возвращает квадрат расстояния до другого вектора
func (v Vec3) DistanceSq(other Vec3) int {
	dx := v.X - other.X
	dy := v.Y - other.Y
	dz := v.Z - other.Z
	return dx*dx + dy*dy + dz*dz
}

// Equals проверяет равенство векторов
func (v Vec3) Equals(other Vec3) bool {
	return v.X == other.X && v.Y == other.Y && v.Z == other.Z
}

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}

// Vec3f возвращает координаты в виде mgl32.Vec3
func (v Vec3) Vec3f() mgl32.Vec3 {
	return mgl32.Vec3{float32(v.X), float32(v.Y), float32(v.Z)}
}

// maxCoord ограничивает диапазон, в который может попасть точка после floor.
// Всё, что дальше, считается мусором из расчётов пикинга.
const maxCoord = 1 << 24

// FromFloat переводит точку в координату вокселя, которому она принадлежит (floor).
// Возвращает false для NaN, бесконечностей и значений за пределами представимого диапазона.
func FromFloat(p mgl32.Vec3) (Vec3, bool) {
	var out [3]int
	for i, c := range p {
		if math32.IsNaN(c) || math32.IsInf(c, 0) {
			return Vec3{}, false
		}
		f := math32.Floor(c)
		if f < -maxCoord || f > maxCoord {
			return Vec3{}, false
		}
		out[i] = int(f)
	}
	return Vec3{X: out[0], Y: out[1], Z: out[2]}, true
}
