package generator

import (
	"github.com/aquilax/go-perlin"
)

// Noise обёртка над шумом Перлина с фиксированным сидом
type Noise struct {
	p *perlin.Perlin
}

// NewNoise создаёт генератор шума Перлина с указанным сидом
func NewNoise(seed int64) *Noise {
	alpha := 2.0  // Сглаживание шума
	beta := 2.0   // Частота шума
	n := int32(3) // Количество октав
	return &Noise{p: perlin.NewPerlin(alpha, beta, n, seed)}
}

// At2D возвращает значение шума для указанных координат (от 0 до 1)
func (n *Noise) At2D(x, y float64) float64 {
	// Значение шума от -1 до 1, переводим в диапазон от 0 до 1
	v := (n.p.Noise2D(x, y) + 1.0) / 2.0
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// At3D возвращает значение трёхмерного шума (от 0 до 1)
func (n *Noise) At3D(x, y, z float64) float64 {
	v := (n.p.Noise3D(x, y, z) + 1.0) / 2.0
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
