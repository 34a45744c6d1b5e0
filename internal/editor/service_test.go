package editor

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/annel0/voxel-editor/internal/export"
	"github.com/annel0/voxel-editor/internal/material"
	"github.com/annel0/voxel-editor/internal/storage"
	"github.com/annel0/voxel-editor/internal/vec"
	"github.com/annel0/voxel-editor/internal/world"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startService(t *testing.T, opts Options) *Service {
	t.Helper()
	s := NewService(opts)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return s
}

func newStore(t *testing.T) storage.VolumeRepo {
	t.Helper()
	store, err := storage.NewMemoryVolumeStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func cuboid(pos mgl32.Vec3, radius int, id material.ID) DrawRequest {
	return DrawRequest{Position: pos, Shape: world.ShapeCuboid, Radius: radius, Material: id}
}

func TestCreateVolumeTemplates(t *testing.T) {
	ctx := context.Background()
	s := startService(t, Options{})

	empty, err := s.CreateVolume(ctx, CreateRequest{Name: "e"})
	require.NoError(t, err)
	assert.Zero(t, empty.Stats.Chunks)
	assert.Equal(t, "e", empty.Name)

	cube, err := s.CreateVolume(ctx, CreateRequest{Template: "Cube"})
	require.NoError(t, err)
	assert.Equal(t, 512, cube.Stats.Voxels)
	assert.Equal(t, "volume", cube.Name)

	sphere, err := s.CreateVolume(ctx, CreateRequest{Template: TemplateSphere, Flags: &world.Flags{UseSmoothSurface: true}})
	require.NoError(t, err)
	assert.Positive(t, sphere.Stats.Triangles)
	assert.True(t, sphere.Flags.UseSmoothSurface)

	terrain, err := s.CreateVolume(ctx, CreateRequest{Template: TemplateTerrain, Seed: 5})
	require.NoError(t, err)
	assert.Equal(t, 16, terrain.Stats.Chunks)

	_, err = s.CreateVolume(ctx, CreateRequest{Template: "castle"})
	assert.True(t, errors.Is(err, ErrUnknownTemplate))

	list, err := s.ListVolumes(ctx)
	require.NoError(t, err)
	require.Len(t, list, 4)
	assert.Equal(t, empty.ID, list[0].ID)
	assert.Equal(t, terrain.ID, list[3].ID)

	assert.Equal(t, []string{"cube", "empty", "sphere", "terrain"}, Templates())
}

func TestDrawUndoRedo(t *testing.T) {
	ctx := context.Background()
	s := startService(t, Options{})
	info, err := s.CreateVolume(ctx, CreateRequest{})
	require.NoError(t, err)
	id := info.ID

	resp, err := s.Draw(ctx, id, cuboid(mgl32.Vec3{0.5, 0.5, 0.5}, 2, 1))
	require.NoError(t, err)
	assert.Equal(t, 64, resp.Changed)
	assert.Equal(t, 64, resp.Stats.Voxels)
	assert.Equal(t, 4, resp.Stats.Chunks)

	resp, err = s.Draw(ctx, id, cuboid(mgl32.Vec3{0, 0, 0}, 1, 2))
	require.NoError(t, err)
	assert.Equal(t, 8, resp.Changed)

	info, err = s.Undo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, info.UndoDepth)
	assert.Equal(t, 1, info.RedoDepth)
	assert.Equal(t, 64, info.Stats.Voxels)

	info, err = s.Undo(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, info.Stats.Voxels)
	assert.Zero(t, info.Stats.Chunks)

	_, err = s.Undo(ctx, id)
	assert.True(t, errors.Is(err, ErrNothingToUndo))

	info, err = s.Redo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 64, info.Stats.Voxels)
	assert.Equal(t, 1, info.UndoDepth)
	assert.Equal(t, 1, info.RedoDepth)

	// Новая правка очищает стек повтора
	_, err = s.Draw(ctx, id, cuboid(mgl32.Vec3{20, 0, 0}, 1, 3))
	require.NoError(t, err)
	_, err = s.Redo(ctx, id)
	assert.True(t, errors.Is(err, ErrNothingToRedo))

	// Мазок без изменений в историю не попадает
	info, err = s.GetVolume(ctx, id)
	require.NoError(t, err)
	depth := info.UndoDepth
	resp, err = s.Draw(ctx, id, cuboid(mgl32.Vec3{20, 0, 0}, 1, 3))
	require.NoError(t, err)
	assert.Zero(t, resp.Changed)
	info, err = s.GetVolume(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, depth, info.UndoDepth)
}

func TestUndoDepthIsCapped(t *testing.T) {
	ctx := context.Background()
	s := startService(t, Options{UndoDepth: 2})
	info, err := s.CreateVolume(ctx, CreateRequest{})
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_, err := s.Draw(ctx, info.ID, cuboid(mgl32.Vec3{float32(i * 5), 0, 0}, 1, 1))
		require.NoError(t, err)
	}

	_, err = s.Undo(ctx, info.ID)
	require.NoError(t, err)
	info, err = s.Undo(ctx, info.ID)
	require.NoError(t, err)
	_, err = s.Undo(ctx, info.ID)
	assert.True(t, errors.Is(err, ErrNothingToUndo))

	// Первые два мазка остались
	assert.Equal(t, 16, info.Stats.Voxels)
}

func TestDrawErrors(t *testing.T) {
	ctx := context.Background()
	s := startService(t, Options{})
	info, err := s.CreateVolume(ctx, CreateRequest{})
	require.NoError(t, err)

	_, err = s.Draw(ctx, info.ID, cuboid(mgl32.Vec3{}, 1, 200))
	assert.True(t, errors.Is(err, ErrUnknownMaterial))

	_, err = s.Draw(ctx, info.ID, cuboid(mgl32.Vec3{}, 0, 1))
	assert.True(t, errors.Is(err, world.ErrInvalidRadius))

	// Огромный радиус отклоняется сразу и не занимает цикл редактора
	_, err = s.Draw(ctx, info.ID, cuboid(mgl32.Vec3{}, 1<<20, 1))
	assert.True(t, errors.Is(err, world.ErrInvalidRadius))
	quick, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_, err = s.GetVolume(quick, info.ID)
	require.NoError(t, err)

	_, err = s.Draw(ctx, uuid.New(), cuboid(mgl32.Vec3{}, 1, 1))
	assert.True(t, errors.Is(err, ErrVolumeNotFound))

	// Стирание пустым материалом допустимо
	resp, err := s.Draw(ctx, info.ID, cuboid(mgl32.Vec3{}, 1, material.Empty))
	require.NoError(t, err)
	assert.Zero(t, resp.Changed)
}

func TestDrawInWorldSpace(t *testing.T) {
	ctx := context.Background()
	s := startService(t, Options{})
	info, err := s.CreateVolume(ctx, CreateRequest{})
	require.NoError(t, err)

	_, err = s.SetTransform(ctx, info.ID, mgl32.Mat4{})
	assert.True(t, errors.Is(err, ErrInvalidTransform))

	_, err = s.SetTransform(ctx, info.ID, mgl32.Translate3D(50, 0, 0))
	require.NoError(t, err)

	req := cuboid(mgl32.Vec3{50.5, 0.5, 0.5}, 1, 1)
	req.World = true
	_, err = s.Draw(ctx, info.ID, req)
	require.NoError(t, err)

	coords, err := s.ChunkCoords(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, []vec.Vec2{{X: -1, Z: -1}, {X: -1, Z: 0}, {X: 0, Z: -1}, {X: 0, Z: 0}}, coords)
}

func TestChunkMeshes(t *testing.T) {
	ctx := context.Background()
	s := startService(t, Options{})
	info, err := s.CreateVolume(ctx, CreateRequest{})
	require.NoError(t, err)

	req := cuboid(mgl32.Vec3{4, 4, 4}, 1, 3)
	req.Shape = world.ShapeSphere
	_, err = s.Draw(ctx, info.ID, req)
	require.NoError(t, err)

	meshes, err := s.ChunkMeshes(ctx, info.ID)
	require.NoError(t, err)
	require.Len(t, meshes, 1)

	m := meshes[0]
	assert.Equal(t, 0, m.X)
	assert.Equal(t, [3]float32{-world.BorderSize, world.MinY, -world.BorderSize}, m.Origin)
	assert.Len(t, m.Positions, 24*3)
	assert.Len(t, m.Normals, 24*3)
	assert.Len(t, m.Indices, 36)
	require.Len(t, m.Materials, 24)
	for _, id := range m.Materials {
		assert.Equal(t, material.ID(3), id)
	}

	single, err := s.ChunkMesh(ctx, info.ID, vec.Vec2{})
	require.NoError(t, err)
	assert.Equal(t, m, single)

	_, err = s.ChunkMesh(ctx, info.ID, vec.Vec2{X: 5})
	assert.True(t, errors.Is(err, ErrChunkNotFound))
}

func TestChunkMeshMaterialBoundary(t *testing.T) {
	ctx := context.Background()
	s := startService(t, Options{})
	info, err := s.CreateVolume(ctx, CreateRequest{})
	require.NoError(t, err)

	// Два соседних вокселя разных материалов: (1,0,0) и (2,0,0)
	for x, id := range map[float32]material.ID{1: 1, 2: 2} {
		req := cuboid(mgl32.Vec3{x, 0, 0}, 1, id)
		req.Shape = world.ShapeSphere
		_, err = s.Draw(ctx, info.ID, req)
		require.NoError(t, err)
	}

	m, err := s.ChunkMesh(ctx, info.ID, vec.Vec2{})
	require.NoError(t, err)
	require.Len(t, m.Indices, 20*3, "10 внешних граней")
	require.Len(t, m.Materials, len(m.Positions)/3)
	require.Len(t, m.Normals, len(m.Positions))

	perMaterial := map[material.ID]int{}
	for i := 0; i < len(m.Indices); i += 3 {
		a, b, c := m.Materials[m.Indices[i]], m.Materials[m.Indices[i+1]], m.Materials[m.Indices[i+2]]
		require.Equal(t, a, b, "треугольник %d", i/3)
		require.Equal(t, a, c, "треугольник %d", i/3)

		// Материал совпадает со стороной границы, где лежит треугольник
		var cx float32
		for k := 0; k < 3; k++ {
			cx += m.Positions[3*m.Indices[i+k]] / 3
		}
		if cx+m.Origin[0] < 2 {
			assert.Equal(t, material.ID(1), a, "треугольник %d", i/3)
		} else {
			assert.Equal(t, material.ID(2), a, "треугольник %d", i/3)
		}
		perMaterial[a]++
	}
	assert.Equal(t, map[material.ID]int{1: 10, 2: 10}, perMaterial)
}

func TestSetFlagsRebuilds(t *testing.T) {
	ctx := context.Background()
	s := startService(t, Options{})
	info, err := s.CreateVolume(ctx, CreateRequest{})
	require.NoError(t, err)
	req := cuboid(mgl32.Vec3{2, 2, 2}, 1, 1)
	req.Shape = world.ShapeSphere
	_, err = s.Draw(ctx, info.ID, req)
	require.NoError(t, err)

	info, err = s.SetFlags(ctx, info.ID, world.Flags{UseSmoothSurface: true, SmoothNormals: true})
	require.NoError(t, err)
	assert.Equal(t, 8, info.Stats.Triangles)
	assert.Equal(t, 6, info.Stats.Vertices)
}

func TestCloneRenameDelete(t *testing.T) {
	ctx := context.Background()
	s := startService(t, Options{})
	orig, err := s.CreateVolume(ctx, CreateRequest{Name: "base", Template: TemplateCube})
	require.NoError(t, err)

	cp, err := s.CloneVolume(ctx, orig.ID)
	require.NoError(t, err)
	assert.NotEqual(t, orig.ID, cp.ID)
	assert.Equal(t, "base (копия)", cp.Name)
	assert.Equal(t, orig.Stats, cp.Stats)

	// Копия независима
	_, err = s.Draw(ctx, cp.ID, cuboid(mgl32.Vec3{}, 4, material.Empty))
	require.NoError(t, err)
	stats, err := s.Stats(ctx, orig.ID)
	require.NoError(t, err)
	assert.Equal(t, 512, stats.Voxels)

	renamed, err := s.Rename(ctx, cp.ID, "other")
	require.NoError(t, err)
	assert.Equal(t, "other", renamed.Name)

	require.NoError(t, s.DeleteVolume(ctx, orig.ID))
	_, err = s.GetVolume(ctx, orig.ID)
	assert.True(t, errors.Is(err, ErrVolumeNotFound))
	assert.True(t, errors.Is(s.DeleteVolume(ctx, orig.ID), ErrVolumeNotFound))

	list, err := s.ListVolumes(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, cp.ID, list[0].ID)
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	s := startService(t, Options{Store: store})

	info, err := s.CreateVolume(ctx, CreateRequest{Name: "saved", Template: TemplateCube})
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, info.ID))

	_, err = s.Draw(ctx, info.ID, cuboid(mgl32.Vec3{30, 0, 0}, 2, 1))
	require.NoError(t, err)

	// Загрузка возвращает сохранённое состояние и сбрасывает историю
	loaded, err := s.Load(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, info.ID, loaded.ID)
	assert.Equal(t, 512, loaded.Stats.Voxels)
	assert.Zero(t, loaded.UndoDepth)

	saved, err := s.Saved(ctx)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "saved", saved[0].Name)

	// Другой сервис восстанавливает объём с тем же ID
	other := startService(t, Options{Store: store})
	restored, err := other.Load(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, info.ID, restored.ID)
	assert.Equal(t, info.Stats, restored.Stats)

	_, err = s.Load(ctx, uuid.New())
	assert.True(t, errors.Is(err, storage.ErrVolumeNotFound))
}

func TestSaveWithoutStore(t *testing.T) {
	ctx := context.Background()
	s := startService(t, Options{})
	info, err := s.CreateVolume(ctx, CreateRequest{})
	require.NoError(t, err)

	assert.True(t, errors.Is(s.Save(ctx, info.ID), ErrNoStore))
	_, err = s.Load(ctx, info.ID)
	assert.True(t, errors.Is(err, ErrNoStore))
	_, err = s.Saved(ctx)
	assert.True(t, errors.Is(err, ErrNoStore))
}

func TestExportOBJ(t *testing.T) {
	ctx := context.Background()
	s := startService(t, Options{})
	info, err := s.CreateVolume(ctx, CreateRequest{Template: TemplateCube})
	require.NoError(t, err)

	var buf bytes.Buffer
	sum, err := s.ExportOBJ(ctx, info.ID, &buf, export.Options{})
	require.NoError(t, err)
	assert.Equal(t, info.Stats.Triangles, sum.Triangles)
	assert.Contains(t, buf.String(), "o chunk_")
}

type forgettingObserver struct {
	mu        sync.Mutex
	created   int
	removed   int
	forgotten []string
}

func (o *forgettingObserver) ChunkCreated(string, vec.Vec2) {
	o.mu.Lock()
	o.created++
	o.mu.Unlock()
}
func (o *forgettingObserver) ChunkRebuilt(world.RebuildEvent)    {}
func (o *forgettingObserver) ChunkRemoved(string, vec.Vec2, int) {
	o.mu.Lock()
	o.removed++
	o.mu.Unlock()
}
func (o *forgettingObserver) BordersPropagated(string, int)      {}
func (o *forgettingObserver) ForgetVolume(volume string) {
	o.mu.Lock()
	o.forgotten = append(o.forgotten, volume)
	o.mu.Unlock()
}

func TestObserverAttached(t *testing.T) {
	ctx := context.Background()
	obs := &forgettingObserver{}
	s := startService(t, Options{Observer: obs})

	info, err := s.CreateVolume(ctx, CreateRequest{Template: TemplateCube})
	require.NoError(t, err)
	require.NoError(t, s.DeleteVolume(ctx, info.ID))

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, 4, obs.created)
	assert.Equal(t, []string{info.ID.String()}, obs.forgotten)
}

func TestFailedTemplateForgetsVolume(t *testing.T) {
	templates["broken"] = func(v *world.Volume, _ int64) error {
		if _, err := v.Draw(mgl32.Vec3{}, world.ShapeCuboid, 2, 1, false); err != nil {
			return err
		}
		return errors.New("шаблон сломан")
	}
	t.Cleanup(func() { delete(templates, "broken") })

	ctx := context.Background()
	obs := &forgettingObserver{}
	s := startService(t, Options{Observer: obs})

	_, err := s.CreateVolume(ctx, CreateRequest{Template: "broken"})
	require.ErrorContains(t, err, "шаблон сломан")

	volumes, err := s.ListVolumes(ctx)
	require.NoError(t, err)
	assert.Empty(t, volumes)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, 4, obs.created)
	assert.Equal(t, obs.created, obs.removed, "чанки несостоявшегося объёма сняты")
	require.Len(t, obs.forgotten, 1)
}

func TestConcurrentDraws(t *testing.T) {
	ctx := context.Background()
	s := startService(t, Options{UndoDepth: 100})
	info, err := s.CreateVolume(ctx, CreateRequest{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Draw(ctx, info.ID, cuboid(mgl32.Vec3{float32(i * 3), 0, 0}, 1, 1))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	stats, err := s.Stats(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, 8*8, stats.Voxels)
}

func TestServiceStopped(t *testing.T) {
	s := NewService(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	_, err := s.CreateVolume(context.Background(), CreateRequest{})
	require.NoError(t, err)

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("Run не завершился")
	}

	_, err = s.ListVolumes(context.Background())
	assert.True(t, errors.Is(err, ErrServiceStopped))
}

func TestExecHonoursContext(t *testing.T) {
	// Сервис не запущен: команда не будет выполнена
	s := NewService(Options{QueueSize: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.ListVolumes(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
