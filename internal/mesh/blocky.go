package mesh

import (
	"github.com/annel0/voxel-editor/internal/material"
	"github.com/annel0/voxel-editor/internal/vec"
	"github.com/go-gl/mathgl/mgl32"
)

// Direction грань куба
type Direction uint8

const (
	DirPosX Direction = iota
	DirNegX
	DirPosY
	DirNegY
	DirPosZ
	DirNegZ
)

// faceKey ключ сварки блочных вершин: вершины объединяются только у
// сонаправленных граней, поэтому грани по разные стороны общей границы
// (с противоположными нормалями) не делят вершины.
type faceKey struct {
	dir Direction
	pos mgl32.Vec3
}

type cubeFace struct {
	normal [3]int
	u, v   mgl32.Vec3 // касательные, u x v == normal
}

var cubeFaces = [6]cubeFace{
	DirPosX: {normal: [3]int{1, 0, 0}, u: mgl32.Vec3{0, 1, 0}, v: mgl32.Vec3{0, 0, 1}},
	DirNegX: {normal: [3]int{-1, 0, 0}, u: mgl32.Vec3{0, 0, 1}, v: mgl32.Vec3{0, 1, 0}},
	DirPosY: {normal: [3]int{0, 1, 0}, u: mgl32.Vec3{0, 0, 1}, v: mgl32.Vec3{1, 0, 0}},
	DirNegY: {normal: [3]int{0, -1, 0}, u: mgl32.Vec3{1, 0, 0}, v: mgl32.Vec3{0, 0, 1}},
	DirPosZ: {normal: [3]int{0, 0, 1}, u: mgl32.Vec3{1, 0, 0}, v: mgl32.Vec3{0, 1, 0}},
	DirNegZ: {normal: [3]int{0, 0, -1}, u: mgl32.Vec3{0, 1, 0}, v: mgl32.Vec3{1, 0, 0}},
}

// Normal возвращает единичную нормаль грани
func (d Direction) Normal() mgl32.Vec3 {
	n := cubeFaces[d].normal
	return mgl32.Vec3{float32(n[0]), float32(n[1]), float32(n[2])}
}

// blockyCell строит единичный куб с центром в origin. Грань отбрасывается,
// если соседняя ячейка в её направлении тоже занята.
func (e *Extractor) blockyCell(origin vec.Vec3, s Sampler) int {
	if s.Sample(origin.X, origin.Y, origin.Z) == material.Empty {
		return 0
	}

	center := origin.Vec3f()
	triangles := 0
	for d := range cubeFaces {
		face := &cubeFaces[d]
		n := face.normal
		if s.Sample(origin.X+n[0], origin.Y+n[1], origin.Z+n[2]) != material.Empty {
			continue
		}

		mid := center.Add(Direction(d).Normal().Mul(0.5))
		hu, hv := face.u.Mul(0.5), face.v.Mul(0.5)
		quad := [4]mgl32.Vec3{
			mid.Sub(hu).Sub(hv),
			mid.Add(hu).Sub(hv),
			mid.Add(hu).Add(hv),
			mid.Sub(hu).Add(hv),
		}

		var idx [4]uint32
		for i, p := range quad {
			idx[i] = e.faceVertex(Direction(d), p)
		}
		e.surface.Indices = append(e.surface.Indices,
			idx[0], idx[1], idx[2],
			idx[0], idx[2], idx[3],
		)
		triangles += 2
	}
	return triangles
}

func (e *Extractor) faceVertex(d Direction, p mgl32.Vec3) uint32 {
	key := faceKey{dir: d, pos: p}
	if idx, ok := e.faces[key]; ok {
		return idx
	}
	idx := uint32(len(e.surface.Positions))
	e.surface.Positions = append(e.surface.Positions, p)
	e.faces[key] = idx
	return idx
}
