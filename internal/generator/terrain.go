package generator

import (
	"fmt"
	"math"

	"github.com/annel0/voxel-editor/internal/material"
	"github.com/annel0/voxel-editor/internal/vec"
	"github.com/annel0/voxel-editor/internal/world"
)

// Материалы слоёв ландшафта (ID таблицы по умолчанию)
const (
	MaterialStone material.ID = 1
	MaterialDirt  material.ID = 2
	MaterialGrass material.ID = 3
	MaterialSand  material.ID = 4
	MaterialWater material.ID = 5
)

// Terrain заполняет объём полем высот на основе шума Перлина.
// Колонка (x, z) получает высоту BaseHeight + noise*Amplitude; верхний
// воксель трава, под ним DirtDepth вокселей земли, ниже камень до Bottom.
// Колонки ниже WaterLevel покрываются песком и водой до WaterLevel.
type Terrain struct {
	Seed       int64
	Amplitude  float64 // Размах высот в вокселях
	Frequency  float64 // Масштаб шума
	BaseHeight int
	Bottom     int // Нижняя граница заполнения (включительно)
	DirtDepth  int
	WaterLevel int // Вода не добавляется, если WaterLevel <= Bottom

	// CaveThreshold > 0 вырезает пещеры в камне там, где 3D шум выше порога
	CaveThreshold float64
}

// DefaultTerrain возвращает параметры ландшафта для шаблона "terrain"
func DefaultTerrain(seed int64) Terrain {
	return Terrain{
		Seed:       seed,
		Amplitude:  12,
		Frequency:  0.05,
		BaseHeight: 0,
		Bottom:     -8,
		DirtDepth:  3,
		WaterLevel: 3,
	}
}

// Height возвращает высоту верхнего вокселя колонки
func (t Terrain) Height(noise *Noise, x, z int) int {
	h := noise.At2D(float64(x)*t.Frequency, float64(z)*t.Frequency)
	height := t.BaseHeight + int(math.Round(h*t.Amplitude))
	if height >= world.MaxY {
		height = world.MaxY - 1
	}
	return height
}

// Fill заполняет прямоугольник [min.X, max.X) x [min.Z, max.Z) и перестраивает
// геометрию объёма. Возвращает количество записанных вокселей.
func (t Terrain) Fill(v *world.Volume, min, max vec.Vec2) (int, error) {
	if max.X <= min.X || max.Z <= min.Z {
		return 0, fmt.Errorf("пустая область генерации: %v..%v", min, max)
	}
	if t.Bottom < world.MinY || t.Bottom >= world.MaxY {
		return 0, fmt.Errorf("нижняя граница %d вне диапазона [%d, %d)", t.Bottom, world.MinY, world.MaxY)
	}

	noise := NewNoise(t.Seed)
	var caves *Noise
	if t.CaveThreshold > 0 {
		caves = NewNoise(t.Seed + 1)
	}

	written := 0
	for z := min.Z; z < max.Z; z++ {
		for x := min.X; x < max.X; x++ {
			height := t.Height(noise, x, z)
			underwater := height < t.WaterLevel && t.WaterLevel > t.Bottom

			for y := t.Bottom; y <= height; y++ {
				id := t.layer(y, height, underwater)
				if id == MaterialStone && caves != nil && y < height-t.DirtDepth {
					f := t.Frequency * 2
					if caves.At3D(float64(x)*f, float64(y)*f, float64(z)*f) > t.CaveThreshold {
						continue
					}
				}
				if v.SetVoxel(x, y, z, id) {
					written++
				}
			}
			if underwater {
				for y := height + 1; y < t.WaterLevel && y < world.MaxY; y++ {
					if v.SetVoxel(x, y, z, MaterialWater) {
						written++
					}
				}
			}
		}
	}

	v.Update()
	return written, nil
}

func (t Terrain) layer(y, height int, underwater bool) material.ID {
	switch {
	case y == height && underwater:
		return MaterialSand
	case y == height:
		return MaterialGrass
	case y > height-t.DirtDepth-1:
		return MaterialDirt
	default:
		return MaterialStone
	}
}
