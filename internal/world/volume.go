package world

import (
	"sort"
	"time"

	"github.com/annel0/voxel-editor/internal/logging"
	"github.com/annel0/voxel-editor/internal/material"
	"github.com/annel0/voxel-editor/internal/vec"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// Flags режимы генерации поверхности объёма
type Flags struct {
	UseSmoothSurface bool `json:"use_smooth_surface" yaml:"use_smooth_surface"`
	SmoothNormals    bool `json:"smooth_normals" yaml:"smooth_normals"`
	SmoothGeometry   bool `json:"smooth_geometry" yaml:"smooth_geometry"`
	Subdivide        bool `json:"subdivide" yaml:"subdivide"`
}

// BuildOptions переводит флаги объёма в параметры перестройки чанка
func (f Flags) BuildOptions() BuildOptions {
	return BuildOptions{
		MarchingCubes:  f.UseSmoothSurface,
		SmoothNormals:  f.SmoothNormals,
		SmoothGeometry: f.SmoothGeometry,
		Subdivide:      f.Subdivide,
	}
}

// UpdateStats итог одного вызова Volume.Update
type UpdateStats struct {
	Rebuilt       int           `json:"rebuilt"`
	BorderRebuilt int           `json:"border_rebuilt"`
	Propagated    int           `json:"propagated"`
	Pruned        int           `json:"pruned"`
	Elapsed       time.Duration `json:"elapsed"`
}

// Volume разреженный объём вокселей: карта координат чанка -> чанк.
// Чанк существует только если в него когда-либо писали непустой воксель
// или он был загружен. Объём не потокобезопасен: все изменения должны
// выполняться из одной горутины.
type Volume struct {
	id        uuid.UUID
	name      string
	flags     Flags
	transform mgl32.Mat4
	chunks    map[vec.Vec2]*Chunk

	observer Observer
	logger   *logging.Logger
}

// NewVolume создаёт пустой объём с единичной трансформацией
func NewVolume(name string, flags Flags) *Volume {
	return NewVolumeWithID(uuid.New(), name, flags)
}

// NewVolumeWithID создаёт пустой объём с заданным идентификатором
// (восстановление из хранилища)
func NewVolumeWithID(id uuid.UUID, name string, flags Flags) *Volume {
	return &Volume{
		id:        id,
		name:      name,
		flags:     flags,
		transform: mgl32.Ident4(),
		chunks:    make(map[vec.Vec2]*Chunk),
		observer:  nopObserver{},
		logger:    logging.GetWorldLogger(),
	}
}

// ID возвращает идентификатор объёма
func (v *Volume) ID() uuid.UUID {
	return v.id
}

// Name возвращает имя объёма
func (v *Volume) Name() string {
	return v.name
}

// SetName меняет имя объёма
func (v *Volume) SetName(name string) {
	v.name = name
}

// SetObserver подключает наблюдателя событий чанков (nil отключает)
func (v *Volume) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	v.observer = o
}

// Flags возвращает режимы генерации
func (v *Volume) Flags() Flags {
	return v.flags
}

// SetFlags меняет режимы генерации. При изменении все чанки помечаются
// для перестройки; геометрия обновится при следующем Update.
func (v *Volume) SetFlags(f Flags) bool {
	if f == v.flags {
		return false
	}
	v.flags = f
	for _, c := range v.chunks {
		c.MarkDirty()
	}
	return true
}

// Transform возвращает трансформацию локального пространства в мировое
func (v *Volume) Transform() mgl32.Mat4 {
	return v.transform
}

// SetTransform задаёт трансформацию (принадлежит графу сцены)
func (v *Volume) SetTransform(m mgl32.Mat4) {
	v.transform = m
}

// WorldToLocal переводит мировую точку в локальное пространство вокселей
func (v *Volume) WorldToLocal(p mgl32.Vec3) (mgl32.Vec3, error) {
	if v.transform.Det() == 0 {
		return mgl32.Vec3{}, ErrInvalidCoordinate
	}
	return v.transform.Inv().Mul4x1(p.Vec4(1)).Vec3(), nil
}

// ChunkAt возвращает чанк по координатам или nil
func (v *Volume) ChunkAt(coord vec.Vec2) *Chunk {
	return v.chunks[coord]
}

// ChunkCount возвращает количество чанков
func (v *Volume) ChunkCount() int {
	return len(v.chunks)
}

// Coords возвращает координаты всех чанков в стабильном порядке (по X, затем по Z)
func (v *Volume) Coords() []vec.Vec2 {
	coords := make([]vec.Vec2, 0, len(v.chunks))
	for c := range v.chunks {
		coords = append(coords, c)
	}
	sortCoords(coords)
	return coords
}

func sortCoords(coords []vec.Vec2) {
	sort.Slice(coords, func(i, j int) bool { return coords[i].Less(coords[j]) })
}

// adopt регистрирует новый чанк. Существующие соседи перестраиваются:
// появление чанка меняет владельцев треугольников на общей границе.
func (v *Volume) adopt(c *Chunk) {
	v.chunks[c.coord] = c
	for _, off := range NeighborOffsets {
		if n := v.chunks[c.coord.Add(off)]; n != nil {
			n.MarkDirty()
		}
	}
	v.observer.ChunkCreated(v.id.String(), c.coord)
}

func (v *Volume) locate(x, z int) (vec.Vec2, int, int) {
	coord := vec.Vec2{X: x, Z: z}.ToChunkCoords(ChunkSize)
	return coord, vec.FloorMod(x, ChunkSize), vec.FloorMod(z, ChunkSize)
}

// SetVoxel записывает воксель по координатам объёма. Чанк создаётся при
// первой непустой записи; запись пустого вокселя в отсутствующий чанк
// ничего не делает. Возвращает false для y вне [MinY, MaxY).
func (v *Volume) SetVoxel(x, y, z int, id material.ID) bool {
	if y < MinY || y >= MaxY {
		return false
	}

	coord, lx, lz := v.locate(x, z)
	c := v.chunks[coord]
	if c == nil {
		if id == material.Empty {
			return true
		}
		c = NewChunk(coord)
		v.adopt(c)
	}
	return c.SetVoxel(lx, y, lz, id)
}

// GetVoxel читает воксель по координатам объёма; нетронутое пространство пусто
func (v *Volume) GetVoxel(x, y, z int) material.ID {
	if y < MinY || y >= MaxY {
		return material.Empty
	}
	coord, lx, lz := v.locate(x, z)
	c := v.chunks[coord]
	if c == nil {
		return material.Empty
	}
	return c.GetVoxel(lx, y, lz)
}

// Update перестраивает изменённые чанки в две фазы.
//
// Фаза 1: каждый изменённый чанк (в порядке координат) синхронизирует рамку
// и перестраивается; собирается набор соседей, чья рамка изменилась.
// Фаза 2: каждый чанк этого набора, ещё не перестроенный после изменения
// рамки, перестраивается без повторной синхронизации.
// В конце удаляются чанки без единого вокселя.
func (v *Volume) Update() UpdateStats {
	start := time.Now()
	var stats UpdateStats
	opts := v.flags.BuildOptions()

	borderSet := make(map[vec.Vec2]struct{})
	for _, coord := range v.Coords() {
		c := v.chunks[coord]
		if !c.needsUpdate {
			continue
		}
		touched := v.rebuildChunk(c, false, opts)
		for _, t := range touched {
			borderSet[t] = struct{}{}
		}
		stats.Rebuilt++
	}

	if len(borderSet) > 0 {
		stats.Propagated = len(borderSet)
		v.observer.BordersPropagated(v.id.String(), len(borderSet))

		pending := make([]vec.Vec2, 0, len(borderSet))
		for coord := range borderSet {
			pending = append(pending, coord)
		}
		sortCoords(pending)

		for _, coord := range pending {
			c := v.chunks[coord]
			if c == nil || !c.borderDirty {
				continue
			}
			v.rebuildChunk(c, true, opts)
			stats.BorderRebuilt++
		}
	}

	var regained []vec.Vec2
	stats.Pruned, regained = v.prune()
	for _, coord := range regained {
		v.rebuildChunk(v.chunks[coord], true, opts)
		stats.BorderRebuilt++
	}
	stats.Elapsed = time.Since(start)

	if stats.Rebuilt+stats.BorderRebuilt+stats.Pruned > 0 {
		v.logger.Debug("Объём %s обновлён: перестроено %d, по рамке %d, удалено %d за %v",
			v.name, stats.Rebuilt, stats.BorderRebuilt, stats.Pruned, stats.Elapsed)
	}
	return stats
}

func (v *Volume) rebuildChunk(c *Chunk, selfOnly bool, opts BuildOptions) []vec.Vec2 {
	prev := c.surface.TriangleCount()
	start := time.Now()
	touched := c.Update(v, selfOnly, opts)

	kind := RebuildFull
	if selfOnly {
		kind = RebuildBorder
	}
	v.observer.ChunkRebuilt(RebuildEvent{
		Volume:        v.id.String(),
		Coord:         c.coord,
		Kind:          kind,
		Triangles:     c.surface.TriangleCount(),
		PrevTriangles: prev,
		Elapsed:       time.Since(start),
	})
	return touched
}

// prune удаляет чанки без вокселей и без геометрии. Их рамка у соседей к
// этому моменту уже очищена через push в фазе 1. Чанк без собственных
// вокселей может владеть краем поверхности соседа и тогда остаётся.
// Возвращает число удалённых чанков и оставшихся соседей, у которых
// сменились владельцы треугольников на общей границе (как в adopt).
func (v *Volume) prune() (int, []vec.Vec2) {
	pruned := 0
	touched := make(map[vec.Vec2]struct{})
	for coord, c := range v.chunks {
		if c.solid > 0 || c.needsUpdate || !c.surface.IsEmpty() {
			continue
		}
		delete(v.chunks, coord)
		v.observer.ChunkRemoved(v.id.String(), coord, c.surface.TriangleCount())
		pruned++
		for _, off := range NeighborOffsets {
			touched[coord.Add(off)] = struct{}{}
		}
	}

	var regained []vec.Vec2
	for coord := range touched {
		if n := v.chunks[coord]; n != nil {
			n.MarkDirty()
			regained = append(regained, coord)
		}
	}
	sortCoords(regained)
	return pruned, regained
}

// Clear удаляет все чанки
func (v *Volume) Clear() {
	for coord, c := range v.chunks {
		delete(v.chunks, coord)
		v.observer.ChunkRemoved(v.id.String(), coord, c.surface.TriangleCount())
	}
}

// Clone создаёт независимую копию объёма: трансформация и флаги копируются,
// чанки копируются через MakeCopy, геометрия строится один раз в конце.
func (v *Volume) Clone() *Volume {
	out := NewVolume(v.name, v.flags)
	out.transform = v.transform
	out.observer = v.observer

	for _, coord := range v.Coords() {
		v.chunks[coord].MakeCopy(out)
	}
	out.Update()
	return out
}

// VolumeStats сводка по объёму
type VolumeStats struct {
	Chunks    int `json:"chunks"`
	Voxels    int `json:"voxels"`
	Triangles int `json:"triangles"`
	Vertices  int `json:"vertices"`
}

// Stats возвращает сводку по объёму
func (v *Volume) Stats() VolumeStats {
	s := VolumeStats{Chunks: len(v.chunks)}
	for _, c := range v.chunks {
		s.Voxels += c.solid
		s.Triangles += c.surface.TriangleCount()
		s.Vertices += c.surface.VertexCount()
	}
	return s
}
