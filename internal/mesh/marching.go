package mesh

import (
	"github.com/annel0/voxel-editor/internal/material"
	"github.com/annel0/voxel-editor/internal/vec"
	"github.com/go-gl/mathgl/mgl32"
)

// ConfigIndex вычисляет индекс конфигурации ячейки по восьми выборкам углов
func ConfigIndex(samples [8]float32) int {
	cfg := 0
	for i, v := range samples {
		if v > IsoLevel {
			cfg |= 1 << i
		}
	}
	return cfg
}

// Interpolate находит точку пересечения поверхности на ребре p1-p2.
// При равных выборках точка ставится на IsoLevel, чтобы избежать деления на ноль.
func Interpolate(p1, p2 mgl32.Vec3, s1, s2 float32) mgl32.Vec3 {
	diff := s2 - s1
	t := IsoLevel
	if diff != 0 {
		t = (IsoLevel - s1) / diff
	}
	return p1.Add(p2.Sub(p1).Mul(t))
}

func (e *Extractor) marchCell(origin vec.Vec3, s Sampler) int {
	var samples [8]float32
	for i, off := range CornerOffsets {
		if s.Sample(origin.X+off[0], origin.Y+off[1], origin.Z+off[2]) != material.Empty {
			samples[i] = 1
		}
	}

	cfg := ConfigIndex(samples)
	// Однородная ячейка (пусто или целиком внутри тела) не даёт граней
	if cfg == 0 || cfg == 255 {
		return 0
	}

	base := origin.Vec3f()
	var points [12]mgl32.Vec3
	mask := EdgeMasks[cfg]
	for edge := 0; edge < 12; edge++ {
		if mask&(1<<edge) == 0 {
			continue
		}
		a, b := EdgeCorners[edge][0], EdgeCorners[edge][1]
		points[edge] = Interpolate(
			base.Add(cornerVec(a)),
			base.Add(cornerVec(b)),
			samples[a], samples[b],
		)
	}

	row := &TriTable[cfg]
	triangles := 0
	for i := 0; i+2 < len(row) && row[i] != -1; i += 3 {
		for j := 0; j < 3; j++ {
			e.surface.Indices = append(e.surface.Indices, e.smoothVertex(points[row[i+j]]))
		}
		triangles++
	}
	return triangles
}

func (e *Extractor) smoothVertex(p mgl32.Vec3) uint32 {
	if e.weld {
		if idx, ok := e.positions[p]; ok {
			return idx
		}
	}
	idx := uint32(len(e.surface.Positions))
	e.surface.Positions = append(e.surface.Positions, p)
	if e.weld {
		e.positions[p] = idx
	}
	return idx
}

func cornerVec(i int) mgl32.Vec3 {
	off := CornerOffsets[i]
	return mgl32.Vec3{float32(off[0]), float32(off[1]), float32(off[2])}
}
