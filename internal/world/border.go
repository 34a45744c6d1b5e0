package world

import (
	"github.com/annel0/voxel-editor/internal/material"
	"github.com/annel0/voxel-editor/internal/vec"
)

// Neighborhood разрешает соседей чанка по координатам. Чанки не хранят
// ссылок друг на друга; nil означает отсутствие соседа.
type Neighborhood interface {
	ChunkAt(coord vec.Vec2) *Chunk
}

// NeighborOffsets смещения восьми соседей: четыре по рёбрам, затем четыре по углам
var NeighborOffsets = [8]vec.Vec2{
	{X: 1, Z: 0},
	{X: -1, Z: 0},
	{X: 0, Z: 1},
	{X: 0, Z: -1},
	{X: 1, Z: 1},
	{X: 1, Z: -1},
	{X: -1, Z: 1},
	{X: -1, Z: -1},
}

// span полуоткрытый диапазон локальных координат по одной оси
type span struct {
	lo, hi int
}

// borderSpan часть рамки этого чанка, перекрывающая собственную область
// соседа со смещением d по оси
func borderSpan(d int) span {
	switch d {
	case 1:
		return span{ChunkSize, ChunkSize + BorderSize}
	case -1:
		return span{-BorderSize, 0}
	default:
		return span{0, ChunkSize}
	}
}

// edgeSpan часть собственной области этого чанка, попадающая в рамку соседа
// со смещением d по оси
func edgeSpan(d int) span {
	switch d {
	case 1:
		return span{ChunkSize - BorderSize, ChunkSize}
	case -1:
		return span{0, BorderSize}
	default:
		return span{0, ChunkSize}
	}
}

// UpdateBorders синхронизирует рамку со всеми восемью соседями.
//
// Pull: участок рамки, перекрывающий собственную область соседа, заново
// выводится из неё; при отсутствии соседа участок очищается.
// Push: краевые воксели этого чанка записываются в рамку соседа; если
// значение изменилось, сосед помечается borderDirty и попадает в
// возвращаемый набор. Рекурсии нет: распространение ограничено одним шагом.
func (c *Chunk) UpdateBorders(n Neighborhood) []vec.Vec2 {
	var touched []vec.Vec2

	for _, off := range NeighborOffsets {
		var neighbor *Chunk
		if n != nil {
			neighbor = n.ChunkAt(c.coord.Add(off))
		}

		// Координаты соседа = координаты этого чанка - off*ChunkSize
		shiftX, shiftZ := off.X*ChunkSize, off.Z*ChunkSize

		c.pullRegion(neighbor, borderSpan(off.X), borderSpan(off.Z), shiftX, shiftZ)
		if neighbor == nil {
			continue
		}
		if neighbor.pushRegion(c, edgeSpan(off.X), edgeSpan(off.Z), shiftX, shiftZ) {
			neighbor.borderDirty = true
			touched = append(touched, neighbor.coord)
		}
	}
	return touched
}

// pullRegion копирует собственную область src в рамку c (или очищает её, если src == nil)
func (c *Chunk) pullRegion(src *Chunk, xs, zs span, shiftX, shiftZ int) {
	for z := zs.lo; z < zs.hi; z++ {
		for y := MinY; y < MaxY; y++ {
			dst := voxelIndex(xs.lo, y, z)
			if src == nil {
				clear(c.voxels[dst : dst+xs.hi-xs.lo])
				continue
			}
			from := voxelIndex(xs.lo-shiftX, y, z-shiftZ)
			copy(c.voxels[dst:dst+xs.hi-xs.lo], src.voxels[from:from+xs.hi-xs.lo])
		}
	}
}

// pushRegion записывает краевые воксели src в рамку c.
// xs, zs заданы в координатах src. Возвращает true, если рамка изменилась.
func (c *Chunk) pushRegion(src *Chunk, xs, zs span, shiftX, shiftZ int) bool {
	changed := false
	width := xs.hi - xs.lo
	for z := zs.lo; z < zs.hi; z++ {
		for y := MinY; y < MaxY; y++ {
			from := voxelIndex(xs.lo, y, z)
			dst := voxelIndex(xs.lo-shiftX, y, z-shiftZ)
			if !changed && !equalIDs(c.voxels[dst:dst+width], src.voxels[from:from+width]) {
				changed = true
			}
			copy(c.voxels[dst:dst+width], src.voxels[from:from+width])
		}
	}
	return changed
}

func equalIDs(a, b []material.ID) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
