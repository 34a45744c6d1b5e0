package world

import (
	"errors"
	"testing"

	"github.com/annel0/voxel-editor/internal/material"
	"github.com/annel0/voxel-editor/internal/mesh"
	"github.com/annel0/voxel-editor/internal/vec"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func totalTriangles(v *Volume) int {
	n := 0
	for _, coord := range v.Coords() {
		n += v.ChunkAt(coord).Surface().TriangleCount()
	}
	return n
}

// referenceTriangles строит поверхность напрямую по объёму, без чанков
func referenceTriangles(v *Volume, mode mesh.Mode, min, max vec.Vec3) int {
	ex := mesh.NewExtractor(mode, false)
	sampler := mesh.SamplerFunc(v.GetVoxel)
	for z := min.Z; z <= max.Z; z++ {
		for y := min.Y; y <= max.Y; y++ {
			for x := min.X; x <= max.X; x++ {
				ex.ExtractCell(vec.Vec3{X: x, Y: y, Z: z}, sampler)
			}
		}
	}
	return ex.Surface().TriangleCount()
}

func TestVolumeReadAfterWrite(t *testing.T) {
	v := NewVolume("test", Flags{})

	points := []vec.Vec3{
		{X: 0, Y: 0, Z: 0},
		{X: -1, Y: 5, Z: -1},
		{X: -10, Y: -128, Z: 9},
		{X: -11, Y: 127, Z: -21},
		{X: 123, Y: 1, Z: -77},
	}
	for i, p := range points {
		id := material.ID(i + 1)
		require.True(t, v.SetVoxel(p.X, p.Y, p.Z, id))
		assert.Equal(t, id, v.GetVoxel(p.X, p.Y, p.Z), "%v", p)
	}

	// Отрицательные координаты попадают в чанк по делению вниз
	assert.NotNil(t, v.ChunkAt(vec.Vec2{X: -1, Z: -1}))
	assert.NotNil(t, v.ChunkAt(vec.Vec2{X: -2, Z: -3}))
	assert.Equal(t, material.ID(2), v.ChunkAt(vec.Vec2{X: -1, Z: -1}).GetVoxel(9, 5, 9))

	for i, p := range points {
		assert.Equal(t, material.ID(i+1), v.GetVoxel(p.X, p.Y, p.Z))
	}
	assert.Equal(t, material.Empty, v.GetVoxel(1000, 0, 1000))
}

func TestVolumeLazyChunks(t *testing.T) {
	v := NewVolume("test", Flags{})

	assert.True(t, v.SetVoxel(5, 0, 5, material.Empty))
	assert.Zero(t, v.ChunkCount())

	assert.False(t, v.SetVoxel(0, MaxY, 0, 1))
	assert.False(t, v.SetVoxel(0, MinY-1, 0, 1))
	assert.Zero(t, v.ChunkCount())
	assert.Equal(t, material.Empty, v.GetVoxel(0, MaxY, 0))

	v.SetVoxel(5, 0, 5, 1)
	assert.Equal(t, 1, v.ChunkCount())
}

func TestVolumeBorderConvergence(t *testing.T) {
	v := NewVolume("test", Flags{})
	v.SetVoxel(ChunkSize+5, 0, 5, 1) // создаёт чанк B (1,0)
	v.Update()

	y, z := 3, 4
	v.SetVoxel(ChunkSize-1, y, z, 5)
	stats := v.Update()

	a := v.ChunkAt(vec.Vec2{X: 0, Z: 0})
	b := v.ChunkAt(vec.Vec2{X: 1, Z: 0})
	require.NotNil(t, a)
	require.NotNil(t, b)

	assert.Equal(t, material.ID(5), b.GetVoxel(-1, y, z))
	assert.False(t, a.NeedsUpdate())
	assert.False(t, b.NeedsUpdate())
	assert.False(t, b.BorderDirty())
	assert.GreaterOrEqual(t, stats.Rebuilt, 1)
}

func TestVolumeOneHopPropagation(t *testing.T) {
	v := NewVolume("test", Flags{})
	v.SetVoxel(2, 0, 2, 1)
	v.SetVoxel(ChunkSize+2, 0, 2, 1)
	v.Update()

	// Запись у края A меняет рамку B: одна перестройка в каждой фазе
	v.SetVoxel(ChunkSize-2, 0, 2, 1)
	stats := v.Update()
	assert.Equal(t, 1, stats.Rebuilt)
	assert.Equal(t, 1, stats.Propagated)
	assert.Equal(t, 1, stats.BorderRebuilt)
	assert.Equal(t, material.ID(1), v.ChunkAt(vec.Vec2{X: 1}).GetVoxel(-2, 0, 2))

	// Запись в глубине A рамку соседей не трогает
	v.SetVoxel(4, 0, 4, 1)
	stats = v.Update()
	assert.Equal(t, 1, stats.Rebuilt)
	assert.Zero(t, stats.Propagated)
	assert.Zero(t, stats.BorderRebuilt)
}

func TestVolumeSeamlessBlocky(t *testing.T) {
	v := NewVolume("test", Flags{})

	// Одиночный воксель у края чанка без соседей
	v.SetVoxel(ChunkSize-1, 0, 0, 1)
	v.Update()
	assert.Equal(t, 12, totalTriangles(v))

	// Два вокселя в разных чанках: общая грань отсекается с обеих сторон
	v.SetVoxel(ChunkSize, 0, 0, 1)
	v.Update()
	assert.Equal(t, 2, v.ChunkCount())
	assert.Equal(t, 20, totalTriangles(v))

	// Отрицательная сторона
	w := NewVolume("neg", Flags{})
	w.SetVoxel(-1, 0, -1, 2)
	w.SetVoxel(0, 0, -1, 2)
	w.SetVoxel(0, 0, 0, 2)
	w.Update()
	assert.Equal(t, referenceTriangles(w, mesh.ModeBlocky, vec.Vec3{X: -2, Y: -1, Z: -2}, vec.Vec3{X: 1, Y: 1, Z: 1}), totalTriangles(w))
}

func TestVolumeSeamlessSmooth(t *testing.T) {
	v := NewVolume("test", Flags{UseSmoothSurface: true})

	// Одиночный воксель у края: октаэдр целиком в одном чанке
	v.SetVoxel(ChunkSize-1, 0, 0, 1)
	v.Update()
	assert.Equal(t, 8, totalTriangles(v))

	// Тело через углы четырёх чанков
	for x := -2; x < 2; x++ {
		for z := -2; z < 2; z++ {
			for y := 0; y < 2; y++ {
				v.SetVoxel(x, y, z, 3)
			}
		}
	}
	v.SetVoxel(1, 2, -2, 3)
	v.SetVoxel(-2, 2, 1, 3)
	v.Update()
	want := referenceTriangles(v, mesh.ModeSmooth, vec.Vec3{X: -20, Y: -2, Z: -4}, vec.Vec3{X: 20, Y: 3, Z: 3})
	assert.Equal(t, want, totalTriangles(v))
}

func TestVolumeIdempotentUpdate(t *testing.T) {
	flagsList := []Flags{
		{},
		{UseSmoothSurface: true},
		{UseSmoothSurface: true, SmoothNormals: true, SmoothGeometry: true, Subdivide: true},
	}
	for _, flags := range flagsList {
		v := NewVolume("test", flags)
		_, err := v.Draw(mgl32.Vec3{9.5, 0, 9.5}, ShapeSphere, 3, 2, false)
		require.NoError(t, err)

		before := make(map[vec.Vec2]*mesh.Surface)
		for _, coord := range v.Coords() {
			before[coord] = v.ChunkAt(coord).Surface().Clone()
		}

		stats := v.Update()
		assert.Zero(t, stats.Rebuilt, "nothing dirty")

		for _, coord := range v.Coords() {
			v.ChunkAt(coord).MarkDirty()
		}
		v.Update()

		for _, coord := range v.Coords() {
			after := v.ChunkAt(coord).Surface()
			assert.Equal(t, before[coord].Positions, after.Positions, "%+v %v", flags, coord)
			assert.Equal(t, before[coord].Indices, after.Indices, "%+v %v", flags, coord)
		}
	}
}

func TestVolumePrunesEmptyChunks(t *testing.T) {
	for _, flags := range []Flags{{}, {UseSmoothSurface: true}} {
		v := NewVolume("test", flags)
		v.SetVoxel(3, 0, 3, 1)
		v.SetVoxel(-3, 0, 3, 1)
		v.Update()
		require.Equal(t, 2, v.ChunkCount())

		v.SetVoxel(3, 0, 3, material.Empty)
		stats := v.Update()
		assert.Equal(t, 1, stats.Pruned, "%+v", flags)
		assert.Equal(t, 1, v.ChunkCount())
		assert.Nil(t, v.ChunkAt(vec.Vec2{}))

		// Сосед удалённого чанка перестроен и совпадает с объёмом,
		// в котором удалённого чанка никогда не было
		left := v.ChunkAt(vec.Vec2{X: -1})
		require.NotNil(t, left)
		assert.False(t, left.NeedsUpdate(), "%+v", flags)
		assert.Equal(t, 1, stats.BorderRebuilt, "%+v", flags)

		fresh := NewVolume("fresh", flags)
		fresh.SetVoxel(-3, 0, 3, 1)
		fresh.Update()
		want := fresh.ChunkAt(vec.Vec2{X: -1}).Surface()
		assert.Equal(t, want.Positions, left.Surface().Positions, "%+v", flags)
		assert.Equal(t, want.Indices, left.Surface().Indices, "%+v", flags)
	}
}

func TestVolumeDraw(t *testing.T) {
	v := NewVolume("test", Flags{})

	res, err := v.Draw(mgl32.Vec3{0.5, 0.2, 0.7}, ShapeCuboid, 2, 4, true)
	require.NoError(t, err)
	assert.Equal(t, 64, res.Changed)
	assert.Len(t, res.Snapshot, 64)
	for _, prev := range res.Snapshot {
		assert.Equal(t, material.Empty, prev)
	}
	assert.Equal(t, 4, v.ChunkCount())
	assert.Equal(t, material.ID(4), v.GetVoxel(-2, -2, -2))
	assert.Equal(t, material.ID(4), v.GetVoxel(1, 1, 1))
	assert.Equal(t, material.Empty, v.GetVoxel(2, 0, 0))
	assert.Equal(t, 64, v.Stats().Voxels)

	// Повтор тем же материалом ничего не меняет
	res, err = v.Draw(mgl32.Vec3{0.5, 0.2, 0.7}, ShapeCuboid, 2, 4, false)
	require.NoError(t, err)
	assert.Zero(t, res.Changed)
	assert.Nil(t, res.Snapshot)
}

func TestVolumeDrawSphere(t *testing.T) {
	v := NewVolume("test", Flags{})
	res, err := v.Draw(mgl32.Vec3{20, 10, 20}, ShapeSphere, 2, 1, false)
	require.NoError(t, err)
	assert.Equal(t, 27, res.Changed)
	assert.Equal(t, material.ID(1), v.GetVoxel(21, 11, 21))
	assert.Equal(t, material.Empty, v.GetVoxel(18, 10, 20))
}

func TestVolumeDrawErrors(t *testing.T) {
	v := NewVolume("test", Flags{})

	_, err := v.Draw(mgl32.Vec3{math32.NaN(), 0, 0}, ShapeSphere, 2, 1, false)
	assert.True(t, errors.Is(err, ErrInvalidCoordinate))

	_, err = v.Draw(mgl32.Vec3{0, math32.Inf(1), 0}, ShapeSphere, 2, 1, false)
	assert.True(t, errors.Is(err, ErrInvalidCoordinate))

	_, err = v.Draw(mgl32.Vec3{}, ShapeCuboid, 0, 1, false)
	assert.True(t, errors.Is(err, ErrInvalidRadius))

	_, err = v.Draw(mgl32.Vec3{}, ShapeCuboid, MaxRadius+1, 1, false)
	assert.True(t, errors.Is(err, ErrInvalidRadius))

	_, err = v.Draw(mgl32.Vec3{}, Shape(7), 1, 1, false)
	assert.True(t, errors.Is(err, ErrUnknownShape))

	assert.Zero(t, v.ChunkCount())
}

func TestVolumeDrawClampsVertically(t *testing.T) {
	v := NewVolume("test", Flags{})
	res, err := v.Draw(mgl32.Vec3{0, MaxY - 1, 0}, ShapeCuboid, 2, 1, false)
	require.NoError(t, err)
	// по y допустимы только MaxY-3 .. MaxY-1
	assert.Equal(t, 4*3*4, res.Changed)
}

func TestVolumeRestoreSnapshot(t *testing.T) {
	v := NewVolume("test", Flags{})
	v.SetVoxel(0, 0, 0, 9)
	v.Update()

	res, err := v.Draw(mgl32.Vec3{}, ShapeCuboid, 1, 3, true)
	require.NoError(t, err)
	assert.Equal(t, material.ID(9), res.Snapshot[vec.Vec3{}])
	assert.Equal(t, material.ID(3), v.GetVoxel(0, 0, 0))

	redo := v.Restore(res.Snapshot)
	assert.Equal(t, material.ID(9), v.GetVoxel(0, 0, 0))
	assert.Equal(t, material.Empty, v.GetVoxel(-1, -1, -1))
	assert.Equal(t, material.ID(3), redo[vec.Vec3{X: -1, Y: -1, Z: -1}])

	v.Restore(redo)
	assert.Equal(t, material.ID(3), v.GetVoxel(-1, -1, -1))
}

func TestVolumeClone(t *testing.T) {
	v := NewVolume("orig", Flags{UseSmoothSurface: true, SmoothNormals: true})
	v.SetTransform(mgl32.Translate3D(1, 2, 3))
	_, err := v.Draw(mgl32.Vec3{0, 0, 0}, ShapeSphere, 4, 2, false)
	require.NoError(t, err)
	v.SetVoxel(-15, 7, 33, 6)
	v.Update()

	c := v.Clone()
	assert.NotEqual(t, v.ID(), c.ID())
	assert.Equal(t, v.Flags(), c.Flags())
	assert.Equal(t, v.Transform(), c.Transform())
	assert.Equal(t, v.ChunkCount(), c.ChunkCount())
	assert.Equal(t, v.Stats(), c.Stats())

	for _, coord := range v.Coords() {
		orig := v.ChunkAt(coord)
		cp := c.ChunkAt(coord)
		require.NotNil(t, cp)
		assert.Equal(t, orig.voxels, cp.voxels, "%v", coord)
		assert.Equal(t, orig.Surface().Positions, cp.Surface().Positions)
	}

	c.SetVoxel(0, 0, 0, material.Empty)
	c.SetVoxel(-15, 7, 33, 1)
	c.Update()
	assert.Equal(t, material.ID(2), v.GetVoxel(0, 0, 0))
	assert.Equal(t, material.ID(6), v.GetVoxel(-15, 7, 33))
}

func TestVolumeSetFlags(t *testing.T) {
	v := NewVolume("test", Flags{})
	v.SetVoxel(1, 1, 1, 1)
	v.Update()
	assert.Equal(t, 12, totalTriangles(v))

	assert.False(t, v.SetFlags(Flags{}))
	assert.True(t, v.SetFlags(Flags{UseSmoothSurface: true}))
	assert.True(t, v.ChunkAt(vec.Vec2{}).NeedsUpdate())
	v.Update()
	assert.Equal(t, 8, totalTriangles(v))
}

func TestVolumeWorldToLocal(t *testing.T) {
	v := NewVolume("test", Flags{})
	v.SetTransform(mgl32.Translate3D(10, 0, 0).Mul4(mgl32.Scale3D(2, 2, 2)))

	local, err := v.WorldToLocal(mgl32.Vec3{13, 5, 1})
	require.NoError(t, err)
	assert.InDelta(t, 1.5, local[0], 1e-5)
	assert.InDelta(t, 2.5, local[1], 1e-5)
	assert.InDelta(t, 0.5, local[2], 1e-5)

	res, err := v.Paint(mgl32.Vec3{13, 5, 1}, Brush{Shape: ShapeCuboid, Radius: 1, Material: 5}, false)
	require.NoError(t, err)
	assert.Equal(t, 8, res.Changed)
	assert.Equal(t, material.ID(5), v.GetVoxel(1, 2, 0))

	v.SetTransform(mgl32.Mat4{})
	_, err = v.WorldToLocal(mgl32.Vec3{})
	assert.True(t, errors.Is(err, ErrInvalidCoordinate))
}

func TestVolumeWriteLoad(t *testing.T) {
	v := NewVolume("saved", Flags{SmoothGeometry: true})
	v.SetTransform(mgl32.Translate3D(0, 5, 0))
	v.SetVoxel(0, 0, 0, 1)
	v.SetVoxel(-1, MinY, -1, 2)
	v.SetVoxel(25, MaxY-1, -30, 255)
	v.Update()

	data := v.Write()
	assert.Equal(t, DataVersion, data.Version)
	require.Len(t, data.Chunks, 3)
	assert.True(t, data.Chunks[0].X <= data.Chunks[1].X)
	for _, cd := range data.Chunks {
		assert.Len(t, cd.Voxels, ChunkSize*ChunkHeight*ChunkSize)
	}

	w := NewVolume("other", Flags{})
	w.SetVoxel(100, 0, 100, 3)
	require.NoError(t, w.Load(data))

	assert.Equal(t, "saved", w.Name())
	assert.Equal(t, v.Flags(), w.Flags())
	assert.Equal(t, v.Transform(), w.Transform())
	assert.Equal(t, 3, w.ChunkCount())
	assert.Equal(t, material.ID(1), w.GetVoxel(0, 0, 0))
	assert.Equal(t, material.ID(2), w.GetVoxel(-1, MinY, -1))
	assert.Equal(t, material.ID(255), w.GetVoxel(25, MaxY-1, -30))
	assert.Equal(t, material.Empty, w.GetVoxel(100, 0, 100))
	assert.Equal(t, v.Stats(), w.Stats())
}

func TestVolumeLoadRejectsBadData(t *testing.T) {
	v := NewVolume("keep", Flags{})
	v.SetVoxel(1, 1, 1, 1)
	v.Update()

	err := v.Load(&VolumeData{Version: 99})
	assert.True(t, errors.Is(err, ErrUnsupportedVersion))

	err = v.Load(&VolumeData{Version: DataVersion, Chunks: []ChunkData{{X: 0, Z: 0, Voxels: []byte{1, 2, 3}}}})
	assert.True(t, errors.Is(err, ErrCorruptChunk))

	good := make([]byte, ChunkSize*ChunkHeight*ChunkSize)
	err = v.Load(&VolumeData{Version: DataVersion, Chunks: []ChunkData{{Voxels: good}, {Voxels: good}}})
	assert.True(t, errors.Is(err, ErrCorruptChunk))

	assert.True(t, errors.Is(v.Load(nil), ErrCorruptChunk))

	assert.Equal(t, "keep", v.Name())
	assert.Equal(t, material.ID(1), v.GetVoxel(1, 1, 1))
}

type recordingObserver struct {
	created, removed    int
	full, border        int
	propagated          int
	triangles, previous int
}

func (r *recordingObserver) ChunkCreated(string, vec.Vec2) { r.created++ }
func (r *recordingObserver) ChunkRebuilt(ev RebuildEvent) {
	if ev.Kind == RebuildFull {
		r.full++
	} else {
		r.border++
	}
	r.triangles += ev.Triangles
	r.previous += ev.PrevTriangles
}
func (r *recordingObserver) ChunkRemoved(string, vec.Vec2, int) { r.removed++ }
func (r *recordingObserver) BordersPropagated(_ string, n int)  { r.propagated += n }

func TestVolumeObserver(t *testing.T) {
	obs := &recordingObserver{}
	v := NewVolume("test", Flags{})
	v.SetObserver(obs)

	v.SetVoxel(2, 0, 2, 1)
	v.SetVoxel(ChunkSize+2, 0, 2, 1)
	v.Update()
	assert.Equal(t, 2, obs.created)
	assert.Equal(t, 2, obs.full)
	assert.Equal(t, 24, obs.triangles)

	v.SetVoxel(ChunkSize-1, 0, 2, 1)
	v.Update()
	assert.Equal(t, 3, obs.full)
	assert.Equal(t, 1, obs.border)
	assert.Equal(t, 1, obs.propagated)

	v.Clear()
	assert.Equal(t, 2, obs.removed)
	assert.Zero(t, v.ChunkCount())

	v.SetObserver(nil)
	assert.NotPanics(t, func() { v.SetVoxel(0, 0, 0, 1); v.Update() })
}

func TestNodeKinds(t *testing.T) {
	nodes := []Node{NewVolume("v", Flags{}), NewGroup("g")}
	assert.Equal(t, NodeVolume, nodes[0].Kind())
	assert.Equal(t, NodeGroup, nodes[1].Kind())
	assert.Equal(t, "volume", NodeVolume.String())
	assert.Equal(t, "g", nodes[1].Name())
	assert.Equal(t, mgl32.Ident4(), nodes[1].Transform())
}

func TestParseShape(t *testing.T) {
	for _, name := range []string{"cuboid", "Cube", "square"} {
		s, err := ParseShape(name)
		require.NoError(t, err)
		assert.Equal(t, ShapeCuboid, s)
	}
	s, err := ParseShape("sphere")
	require.NoError(t, err)
	assert.Equal(t, ShapeSphere, s)

	_, err = ParseShape("torus")
	assert.True(t, errors.Is(err, ErrUnknownShape))

	var parsed Shape
	require.NoError(t, parsed.UnmarshalText([]byte("sphere")))
	assert.Equal(t, ShapeSphere, parsed)
	text, err := ShapeCuboid.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "cuboid", string(text))
}

type forgettingObserver struct {
	recordingObserver
	forgotten []string
}

func (f *forgettingObserver) ForgetVolume(volume string) { f.forgotten = append(f.forgotten, volume) }

func TestObserversFanOut(t *testing.T) {
	a := &recordingObserver{}
	b := &forgettingObserver{}
	obs := Observers(a, nil, b)

	v := NewVolume("fan", Flags{})
	v.SetObserver(obs)
	v.SetVoxel(2, 0, 2, 1)
	v.Update()
	assert.Equal(t, 1, a.created)
	assert.Equal(t, 1, b.created)
	assert.Equal(t, a.triangles, b.triangles)

	f, ok := obs.(interface{ ForgetVolume(string) })
	require.True(t, ok)
	f.ForgetVolume(v.ID().String())
	assert.Equal(t, []string{v.ID().String()}, b.forgotten)

	assert.Same(t, a, Observers(nil, a))
	assert.Equal(t, nopObserver{}, Observers())
}
