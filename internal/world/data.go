package world

import (
	"fmt"

	"github.com/annel0/voxel-editor/internal/material"
	"github.com/annel0/voxel-editor/internal/vec"
	"github.com/go-gl/mathgl/mgl32"
)

// DataVersion текущая версия формата VolumeData
const DataVersion = 1

// ChunkData собственная область одного чанка.
// Voxels содержит ChunkSize*ChunkHeight*ChunkSize байт в раскладке
// x + ChunkSize*(iy + ChunkHeight*z), где iy = y - MinY.
type ChunkData struct {
	X      int    `json:"x"`
	Z      int    `json:"z"`
	Voxels []byte `json:"voxels"`
}

// VolumeData сериализуемое состояние объёма: сырые воксели чанков,
// флаги и трансформация. Формат архива определяет вызывающий.
type VolumeData struct {
	Version   int         `json:"version"`
	Name      string      `json:"name"`
	Flags     Flags       `json:"flags"`
	Transform [16]float32 `json:"transform"`
	Chunks    []ChunkData `json:"chunks"`
}

func interiorIndex(x, iy, z int) int {
	return x + ChunkSize*(iy+ChunkHeight*z)
}

// Write экспортирует объём. Чанки идут в порядке координат.
func (v *Volume) Write() *VolumeData {
	data := &VolumeData{
		Version:   DataVersion,
		Name:      v.name,
		Flags:     v.flags,
		Transform: [16]float32(v.transform),
		Chunks:    make([]ChunkData, 0, len(v.chunks)),
	}

	for _, coord := range v.Coords() {
		c := v.chunks[coord]
		voxels := make([]byte, interiorVolume)
		for z := 0; z < ChunkSize; z++ {
			for iy := 0; iy < ChunkHeight; iy++ {
				row := voxelIndex(0, iy+MinY, z)
				dst := interiorIndex(0, iy, z)
				for x := 0; x < ChunkSize; x++ {
					voxels[dst+x] = byte(c.voxels[row+x])
				}
			}
		}
		data.Chunks = append(data.Chunks, ChunkData{X: coord.X, Z: coord.Z, Voxels: voxels})
	}
	return data
}

// Load заменяет содержимое объёма данными и перестраивает геометрию.
// При ошибке объём не изменяется.
func (v *Volume) Load(data *VolumeData) error {
	if data == nil {
		return fmt.Errorf("%w: пустые данные", ErrCorruptChunk)
	}
	if data.Version != DataVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, data.Version)
	}

	seen := make(map[vec.Vec2]struct{}, len(data.Chunks))
	for _, cd := range data.Chunks {
		if len(cd.Voxels) != interiorVolume {
			return fmt.Errorf("%w: чанк (%d,%d) содержит %d байт, ожидалось %d",
				ErrCorruptChunk, cd.X, cd.Z, len(cd.Voxels), interiorVolume)
		}
		coord := vec.Vec2{X: cd.X, Z: cd.Z}
		if _, dup := seen[coord]; dup {
			return fmt.Errorf("%w: чанк (%d,%d) повторяется", ErrCorruptChunk, cd.X, cd.Z)
		}
		seen[coord] = struct{}{}
	}

	v.Clear()
	v.name = data.Name
	v.flags = data.Flags
	v.transform = mgl32.Mat4(data.Transform)

	for _, cd := range data.Chunks {
		c := NewChunk(vec.Vec2{X: cd.X, Z: cd.Z})
		for z := 0; z < ChunkSize; z++ {
			for iy := 0; iy < ChunkHeight; iy++ {
				row := voxelIndex(0, iy+MinY, z)
				src := interiorIndex(0, iy, z)
				for x := 0; x < ChunkSize; x++ {
					id := material.ID(cd.Voxels[src+x])
					c.voxels[row+x] = id
					if id != material.Empty {
						c.solid++
					}
				}
			}
		}
		v.adopt(c)
	}

	v.logger.Info("Объём %s загружен: %d чанков", v.name, len(data.Chunks))
	v.Update()
	return nil
}
