package export

import (
	"bufio"
	"fmt"
	"io"

	"github.com/annel0/voxel-editor/internal/mesh"
	"github.com/annel0/voxel-editor/internal/world"
	"github.com/go-gl/mathgl/mgl32"
)

// Options параметры экспорта
type Options struct {
	// UVs добавляет координаты атласа (vt) для запекания материалов
	UVs bool
	// UVScale сжатие треугольника внутри ячейки атласа, 0 означает 1
	UVScale float32
	// World применяет трансформацию объёма к вершинам
	World bool
}

// Summary итог экспорта
type Summary struct {
	Objects   int
	Vertices  int
	Triangles int
}

// WriteOBJ записывает поверхности всех чанков объёма в формате Wavefront OBJ.
// Каждый чанк становится отдельным объектом chunk_<cx>_<cz>; вершины
// в локальных координатах объёма (или мировых при opts.World).
func WriteOBJ(w io.Writer, v *world.Volume, opts Options) (Summary, error) {
	bw := bufio.NewWriter(w)
	var sum Summary

	fmt.Fprintf(bw, "# voxel-editor: %s\n", v.Name())

	transform := mgl32.Ident4()
	if opts.World {
		transform = v.Transform()
	}
	normalMat := transform.Mat3().Inv().Transpose()

	base := 1
	for _, coord := range v.Coords() {
		chunk := v.ChunkAt(coord)
		surface := chunk.Surface()
		if surface.IsEmpty() {
			continue
		}

		s := surface.Clone()
		s.Translate(chunk.Origin())
		var uvs []mgl32.Vec2
		if opts.UVs {
			s = Unweld(s)
			uvs = UnwrapUVs(s)
			if opts.UVScale > 0 && opts.UVScale != 1 {
				ScaleUVTris(uvs, mgl32.Vec2{opts.UVScale, opts.UVScale})
			}
			FlipV(uvs)
		}

		fmt.Fprintf(bw, "o chunk_%d_%d\n", coord.X, coord.Z)
		for _, p := range s.Positions {
			p = mgl32.TransformCoordinate(p, transform)
			fmt.Fprintf(bw, "v %g %g %g\n", p[0], p[1], p[2])
		}
		hasNormals := len(s.Normals) == len(s.Positions)
		if hasNormals {
			for _, n := range s.Normals {
				n = normalMat.Mul3x1(n)
				if l := n.Len(); l > 0 {
					n = n.Mul(1 / l)
				}
				fmt.Fprintf(bw, "vn %g %g %g\n", n[0], n[1], n[2])
			}
		}
		for _, uv := range uvs {
			fmt.Fprintf(bw, "vt %g %g\n", uv[0], uv[1])
		}

		writeFaces(bw, s, base, hasNormals, uvs != nil)

		base += len(s.Positions)
		sum.Objects++
		sum.Vertices += len(s.Positions)
		sum.Triangles += s.TriangleCount()
	}

	if err := bw.Flush(); err != nil {
		return sum, fmt.Errorf("ошибка записи OBJ: %w", err)
	}
	return sum, nil
}

func writeFaces(w *bufio.Writer, s *mesh.Surface, base int, normals, uvs bool) {
	for i := 0; i+2 < len(s.Indices); i += 3 {
		w.WriteString("f")
		for j := 0; j < 3; j++ {
			idx := int(s.Indices[i+j]) + base
			switch {
			case normals && uvs:
				fmt.Fprintf(w, " %d/%d/%d", idx, idx, idx)
			case normals:
				fmt.Fprintf(w, " %d//%d", idx, idx)
			case uvs:
				fmt.Fprintf(w, " %d/%d", idx, idx)
			default:
				fmt.Fprintf(w, " %d", idx)
			}
		}
		w.WriteString("\n")
	}
}
