package world

import (
	"github.com/annel0/voxel-editor/internal/material"
	"github.com/annel0/voxel-editor/internal/mesh"
	"github.com/annel0/voxel-editor/internal/vec"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// ChunkSize горизонтальный размер собственной области чанка
	ChunkSize = 10
	// BorderSize ширина кэшированной рамки соседей с каждой стороны
	BorderSize = 3
	// ChunkHeight вертикальный размер чанка
	ChunkHeight = 256
	// ChunkSizeWithBorder полный горизонтальный размер вместе с рамкой
	ChunkSizeWithBorder = ChunkSize + 2*BorderSize

	// MinY нижняя граница вертикального диапазона (включительно)
	MinY = -ChunkHeight / 2
	// MaxY верхняя граница вертикального диапазона (исключительно)
	MaxY = ChunkHeight / 2

	chunkVolume    = ChunkSizeWithBorder * ChunkHeight * ChunkSizeWithBorder
	interiorVolume = ChunkSize * ChunkHeight * ChunkSize
)

// Chunk колонна вокселей ChunkSize x ChunkHeight x ChunkSize с рамкой
// BorderSize по горизонтали. Рамка хранит копии краевых вокселей соседей и
// нужна только для бесшовной генерации геометрии.
//
// Воксели лежат в плоском массиве с раскладкой bx + S*(iy + H*bz), где
// bx, bz координаты с учётом рамки, а iy = y - MinY. Эта же раскладка
// используется текстурой материалов.
type Chunk struct {
	coord  vec.Vec2
	voxels []material.ID
	solid  int // непустые воксели собственной области

	needsUpdate bool
	borderDirty bool

	surface *mesh.Surface
	texture *material.Texture
}

// NewChunk создаёт пустой чанк с указанными координатами
func NewChunk(coord vec.Vec2) *Chunk {
	return &Chunk{
		coord:       coord,
		voxels:      make([]material.ID, chunkVolume),
		needsUpdate: true,
		surface:     &mesh.Surface{},
		texture:     material.NewTexture(ChunkSizeWithBorder, ChunkHeight, ChunkSizeWithBorder),
	}
}

// voxelIndex переводит локальные координаты (x,z в [-B, S+B), y в [MinY, MaxY))
// в индекс плоского массива. Возвращает -1 вне границ.
func voxelIndex(x, y, z int) int {
	bx, bz, iy := x+BorderSize, z+BorderSize, y-MinY
	if bx < 0 || bx >= ChunkSizeWithBorder || bz < 0 || bz >= ChunkSizeWithBorder || iy < 0 || iy >= ChunkHeight {
		return -1
	}
	return bx + ChunkSizeWithBorder*(iy+ChunkHeight*bz)
}

func isInterior(x, z int) bool {
	return x >= 0 && x < ChunkSize && z >= 0 && z < ChunkSize
}

// Coord возвращает координаты чанка
func (c *Chunk) Coord() vec.Vec2 {
	return c.coord
}

// Origin возвращает смещение локального пространства геометрии чанка
// относительно пространства объёма
func (c *Chunk) Origin() mgl32.Vec3 {
	return mgl32.Vec3{
		float32(c.coord.X*ChunkSize - BorderSize),
		float32(MinY),
		float32(c.coord.Z*ChunkSize - BorderSize),
	}
}

// SetVoxel записывает воксель по локальным координатам чанка.
// Допустимы x, z в [-BorderSize, ChunkSize+BorderSize) и y в [MinY, MaxY);
// запись вне диапазона отклоняется с результатом false.
func (c *Chunk) SetVoxel(x, y, z int, id material.ID) bool {
	i := voxelIndex(x, y, z)
	if i < 0 {
		return false
	}

	old := c.voxels[i]
	if old == id {
		return true
	}
	c.voxels[i] = id

	if isInterior(x, z) {
		switch {
		case old == material.Empty:
			c.solid++
		case id == material.Empty:
			c.solid--
		}
	}
	c.needsUpdate = true
	return true
}

// GetVoxel читает воксель; вне диапазона возвращает material.Empty
func (c *Chunk) GetVoxel(x, y, z int) material.ID {
	i := voxelIndex(x, y, z)
	if i < 0 {
		return material.Empty
	}
	return c.voxels[i]
}

// sample читает воксель в координатах с учётом рамки (bx, bz в [0, S+2B), iy в [0, H))
func (c *Chunk) sample(bx, iy, bz int) material.ID {
	if bx < 0 || bx >= ChunkSizeWithBorder || bz < 0 || bz >= ChunkSizeWithBorder || iy < 0 || iy >= ChunkHeight {
		return material.Empty
	}
	return c.voxels[bx+ChunkSizeWithBorder*(iy+ChunkHeight*bz)]
}

// SolidCount возвращает количество непустых вокселей собственной области
func (c *Chunk) SolidCount() int {
	return c.solid
}

// IsEmpty возвращает true, если в собственной области нет вокселей
func (c *Chunk) IsEmpty() bool {
	return c.solid == 0
}

// NeedsUpdate возвращает true, если геометрия устарела
func (c *Chunk) NeedsUpdate() bool {
	return c.needsUpdate
}

// BorderDirty возвращает true, если соседи изменили рамку после последней перестройки
func (c *Chunk) BorderDirty() bool {
	return c.borderDirty
}

// MarkDirty помечает чанк для полной перестройки
func (c *Chunk) MarkDirty() {
	c.needsUpdate = true
}

// Surface возвращает геометрию последней перестройки в локальном пространстве чанка
func (c *Chunk) Surface() *mesh.Surface {
	return c.surface
}

// Texture возвращает буфер материалов последней перестройки
func (c *Chunk) Texture() *material.Texture {
	return c.texture
}

// BuildOptions флаги генерации геометрии
type BuildOptions struct {
	MarchingCubes  bool
	SmoothNormals  bool
	SmoothGeometry bool
	Subdivide      bool
}

// Weld возвращает true, если вершины нужно сваривать
func (o BuildOptions) Weld() bool {
	return o.SmoothNormals || o.SmoothGeometry || o.Subdivide
}

func (o BuildOptions) mode() mesh.Mode {
	if o.MarchingCubes {
		return mesh.ModeSmooth
	}
	return mesh.ModeBlocky
}

// Update перестраивает геометрию и текстуру материалов чанка.
// Если selfOnly == false, сначала синхронизирует рамку с соседями.
// Возвращает координаты соседей, рамка которых изменилась и требует
// повторной перестройки в режиме selfOnly.
func (c *Chunk) Update(n Neighborhood, selfOnly bool, opts BuildOptions) []vec.Vec2 {
	var touched []vec.Vec2
	if !selfOnly {
		touched = c.UpdateBorders(n)
	}

	c.rebuild(n, opts)
	copy(c.texture.Data, c.voxels)

	c.needsUpdate = false
	c.borderDirty = false
	return touched
}

func (c *Chunk) rebuild(n Neighborhood, opts BuildOptions) {
	ex := mesh.NewExtractor(opts.mode(), opts.Weld())
	sampler := mesh.SamplerFunc(c.sample)

	if opts.MarchingCubes {
		// Ячейки на всю рамку и по слою снизу и сверху, чтобы поверхность
		// замыкалась на границах вертикального диапазона
		for bz := 0; bz < ChunkSizeWithBorder-1; bz++ {
			for iy := -1; iy < ChunkHeight; iy++ {
				for bx := 0; bx < ChunkSizeWithBorder-1; bx++ {
					ex.ExtractCell(vec.Vec3{X: bx, Y: iy, Z: bz}, sampler)
				}
			}
		}
	} else {
		// Блочные грани принадлежат чанку занятого вокселя, поэтому
		// обходится только собственная область; рамка нужна для отсечения граней
		lo, hi := BorderSize, BorderSize+ChunkSize
		for bz := lo; bz < hi; bz++ {
			for iy := 0; iy < ChunkHeight; iy++ {
				for bx := lo; bx < hi; bx++ {
					ex.ExtractCell(vec.Vec3{X: bx, Y: iy, Z: bz}, sampler)
				}
			}
		}
	}

	surface := ex.Surface()
	if opts.MarchingCubes {
		if opts.Subdivide {
			surface.Positions, surface.Indices = mesh.Subdivide(surface.Positions, surface.Indices)
		}
		if opts.SmoothGeometry {
			mesh.Smooth(surface.Positions, surface.Indices)
		}
	}

	// Центр вокселя bx оказывается в bx+0.5, воксель занимает [bx, bx+1]
	surface.Translate(mgl32.Vec3{0.5, 0.5, 0.5})
	surface.Normals = mesh.ComputeVertexNormals(surface.Positions, surface.Indices)
	surface.Retain(func(centroid, normal mgl32.Vec3) bool {
		return c.owns(n, centroid, normal)
	})

	c.surface = surface
}

// footprint возвращает координаты чанка, в горизонтальную область которого
// попадает точка локального пространства геометрии
func (c *Chunk) footprint(p mgl32.Vec3) vec.Vec2 {
	gx := int(math32.Floor(p[0])) - BorderSize + c.coord.X*ChunkSize
	gz := int(math32.Floor(p[2])) - BorderSize + c.coord.Z*ChunkSize
	return vec.Vec2{X: gx, Z: gz}.ToChunkCoords(ChunkSize)
}

// owns решает, какой чанк выдаёт треугольник, построенный в рамке.
// Владелец тот, чья область содержит точку на полвокселя позади треугольника
// (со стороны тела); если такого чанка нет, то тот, чья область содержит
// центроид. Если нет и его, треугольник сохраняется.
func (c *Chunk) owns(n Neighborhood, centroid, normal mgl32.Vec3) bool {
	for _, p := range [2]mgl32.Vec3{centroid.Sub(normal.Mul(0.5)), centroid} {
		coord := c.footprint(p)
		if coord == c.coord {
			return true
		}
		if n != nil && n.ChunkAt(coord) != nil {
			return false
		}
	}
	return true
}

// MakeCopy копирует собственную область чанка (без рамки) в новый чанк,
// принадлежащий target. Рамка будет восстановлена при обновлении target.
func (c *Chunk) MakeCopy(target *Volume) *Chunk {
	cp := NewChunk(c.coord)
	for z := 0; z < ChunkSize; z++ {
		for y := MinY; y < MaxY; y++ {
			row := voxelIndex(0, y, z)
			copy(cp.voxels[row:row+ChunkSize], c.voxels[row:row+ChunkSize])
		}
	}
	cp.solid = c.solid
	target.adopt(cp)
	return cp
}
