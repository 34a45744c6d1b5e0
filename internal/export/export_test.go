package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/annel0/voxel-editor/internal/mesh"
	"github.com/annel0/voxel-editor/internal/world"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quad() *mesh.Surface {
	return &mesh.Surface{
		Positions: []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}},
		Normals:   []mgl32.Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
		Indices:   []uint32{0, 1, 2, 0, 2, 3},
	}
}

func countPrefix(text, prefix string) int {
	n := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, prefix) {
			n++
		}
	}
	return n
}

func TestUnweld(t *testing.T) {
	s := Unweld(quad())
	assert.Equal(t, 6, s.VertexCount())
	assert.Equal(t, []uint32{0, 1, 2, 3, 4, 5}, s.Indices)
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, s.Positions[5])
	assert.Len(t, s.Normals, 6)
}

func TestUnwrapUVs(t *testing.T) {
	s := Unweld(quad())
	uvs := UnwrapUVs(s)
	require.Len(t, uvs, 6)

	// две ячейки в сетке 2x2
	assert.Equal(t, mgl32.Vec2{0, 0}, uvs[0])
	assert.Equal(t, mgl32.Vec2{0.5, 0}, uvs[1])
	assert.Equal(t, mgl32.Vec2{0, 0.5}, uvs[2])
	assert.Equal(t, mgl32.Vec2{0.5, 0}, uvs[3])
	assert.Equal(t, mgl32.Vec2{1, 0}, uvs[4])
	assert.Equal(t, mgl32.Vec2{0.5, 0.5}, uvs[5])

	assert.Empty(t, UnwrapUVs(&mesh.Surface{}))
}

func TestScaleUVTris(t *testing.T) {
	uvs := []mgl32.Vec2{{0, 0}, {3, 0}, {0, 3}}
	ScaleUVTris(uvs, mgl32.Vec2{0.5, 0.5})

	assert.InDelta(t, 0.5, uvs[0][0], 1e-6)
	assert.InDelta(t, 0.5, uvs[0][1], 1e-6)
	assert.InDelta(t, 2, uvs[1][0], 1e-6)
	assert.InDelta(t, 2, uvs[2][1], 1e-6)

	FlipV(uvs)
	assert.InDelta(t, 0.5, uvs[0][1], 1e-6)
	assert.InDelta(t, -1, uvs[2][1], 1e-6)
}

func TestWriteOBJ(t *testing.T) {
	v := world.NewVolume("cube", world.Flags{})
	v.SetVoxel(world.ChunkSize-1, 0, 0, 1)
	v.SetVoxel(world.ChunkSize, 0, 0, 1)
	v.Update()

	var buf bytes.Buffer
	sum, err := WriteOBJ(&buf, v, Options{})
	require.NoError(t, err)

	text := buf.String()
	assert.Equal(t, 2, sum.Objects)
	assert.Equal(t, 20, sum.Triangles)
	assert.Equal(t, 20, countPrefix(text, "f "))
	assert.Equal(t, sum.Vertices, countPrefix(text, "v "))
	assert.Equal(t, sum.Vertices, countPrefix(text, "vn "))
	assert.Contains(t, text, "o chunk_0_0\n")
	assert.Contains(t, text, "o chunk_1_0\n")

	// Вершины в локальных координатах объёма: куб занимает [9, 11] по x
	for _, line := range strings.Split(text, "\n") {
		if !strings.HasPrefix(line, "v ") {
			continue
		}
		assert.Regexp(t, `^v (9|10|11) (0|1) (0|1)$`, line)
	}
}

func TestWriteOBJWithUVsAndTransform(t *testing.T) {
	v := world.NewVolume("moved", world.Flags{})
	v.SetTransform(mgl32.Translate3D(100, 0, 0))
	v.SetVoxel(0, 0, 0, 1)
	v.Update()

	var buf bytes.Buffer
	sum, err := WriteOBJ(&buf, v, Options{UVs: true, UVScale: 0.8, World: true})
	require.NoError(t, err)

	text := buf.String()
	assert.Equal(t, 12, sum.Triangles)
	assert.Equal(t, 36, sum.Vertices)
	assert.Equal(t, 36, countPrefix(text, "vt "))
	assert.Contains(t, text, "f 1/1/1 2/2/2 3/3/3\n")
	assert.Contains(t, text, "v 100 ")
	assert.NotContains(t, text, "v 0 ")
}

func TestWriteOBJEmptyVolume(t *testing.T) {
	var buf bytes.Buffer
	sum, err := WriteOBJ(&buf, world.NewVolume("empty", world.Flags{}), Options{})
	require.NoError(t, err)
	assert.Zero(t, sum.Objects)
	assert.Equal(t, "# voxel-editor: empty\n", buf.String())
}
